package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/golang/protobuf/jsonpb"
	"github.com/golang/protobuf/proto"
	structpb "github.com/golang/protobuf/ptypes/struct"

	"github.com/robotalks/bang.go/pkg/bridge"
)

var (
	mqttURL = "mqtt://localhost:1883/bang/"
)

func init() {
	if val := os.Getenv("BANG_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := bridge.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	if err = q.Connect(); err != nil {
		log.Fatalln(err)
	}

	marshaler := &jsonpb.Marshaler{}
	err = q.Subscribe("#", func(topic string, payload []byte) {
		switch {
		case strings.HasSuffix(topic, "/meta"):
			log.Printf("%s: %s", topic, string(payload))
		case strings.Contains(topic, "/ack/"):
			ack, err := bridge.DecodeAck(payload)
			if err != nil {
				log.Printf("%s: bad ack: %v", topic, err)
				return
			}
			log.Printf("%s: ok=%v %s", topic, ack.OK, ack.Error)
		default:
			var s structpb.Struct
			if err := proto.Unmarshal(payload, &s); err != nil {
				log.Printf("%s: bad message: %v", topic, err)
				return
			}
			text, err := marshaler.MarshalToString(&s)
			if err != nil {
				log.Printf("%s: %v", topic, err)
				return
			}
			log.Printf("%s: %s", topic, text)
		}
	})
	if err != nil {
		log.Fatalln(err)
	}
	<-(chan struct{})(nil)
}
