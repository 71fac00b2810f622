package msgs

import (
	"fmt"
	"strconv"
	"strings"
)

// Format renders msg as "Name{field=value ...}".
func (r *Registry) Format(msg Message) string {
	d, err := r.descriptorOf(msg)
	if err != nil {
		return fmt.Sprintf("%T{%v}", msg, err)
	}
	var sb strings.Builder
	sb.WriteString(d.Name)
	sb.WriteByte('{')
	for n, v := range msg.Values() {
		if n > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(d.Fields[n].Name)
		sb.WriteByte('=')
		sb.WriteString(strconv.FormatFloat(FieldFloat(v), 'g', -1, 64))
	}
	sb.WriteByte('}')
	return sb.String()
}

// FieldIndex finds the field index by name, or -1.
func (d *Descriptor) FieldIndex(name string) int {
	for n, f := range d.Fields {
		if f.Name == name {
			return n
		}
	}
	return -1
}

// FieldFloat reads a field pointer as float64.
func FieldFloat(v interface{}) float64 {
	switch p := v.(type) {
	case *int8:
		return float64(*p)
	case *uint8:
		return float64(*p)
	case *int16:
		return float64(*p)
	case *uint16:
		return float64(*p)
	case *int32:
		return float64(*p)
	case *uint32:
		return float64(*p)
	case *float32:
		return float64(*p)
	}
	return 0
}

// SetFloat stores val into a field pointer, failing if val doesn't fit.
func SetFloat(v interface{}, val float64) error {
	k := kindOf(v)
	if k != Float32 && val != float64(int64(val)) {
		return fmt.Errorf("%v is not an integer for %s", val, k)
	}
	if !fits(k, val) {
		return fmt.Errorf("%v out of range for %s", val, k)
	}
	switch p := v.(type) {
	case *int8:
		*p = int8(val)
	case *uint8:
		*p = uint8(val)
	case *int16:
		*p = int16(val)
	case *uint16:
		*p = uint16(val)
	case *int32:
		*p = int32(val)
	case *uint32:
		*p = uint32(val)
	case *float32:
		*p = float32(val)
	default:
		return fmt.Errorf("unsupported field type %T", v)
	}
	return nil
}

func fits(k Kind, val float64) bool {
	switch k {
	case Int8:
		return val >= -128 && val <= 127
	case Uint8:
		return val >= 0 && val <= 0xff
	case Int16:
		return val >= -32768 && val <= 32767
	case Uint16:
		return val >= 0 && val <= 0xffff
	case Int32:
		return val >= -2147483648 && val <= 2147483647
	case Uint32:
		return val >= 0 && val <= 0xffffffff
	}
	return true
}

// SetField parses text and stores it into the named field of msg.
func (r *Registry) SetField(msg Message, name, text string) error {
	d, err := r.descriptorOf(msg)
	if err != nil {
		return err
	}
	n := d.FieldIndex(name)
	if n < 0 {
		return fmt.Errorf("%s has no field %q", d.Name, name)
	}
	val, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return fmt.Errorf("%s.%s: %w", d.Name, name, err)
	}
	if err = SetFloat(msg.Values()[n], val); err != nil {
		return fmt.Errorf("%s.%s: %w", d.Name, name, err)
	}
	return nil
}

// Parse builds a message from "name" and "field=value" arguments.
// Unset fields stay zero.
func (r *Registry) Parse(name string, args ...string) (Message, error) {
	d, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown message %q", name)
	}
	msg := d.New()
	for _, arg := range args {
		kv := strings.SplitN(arg, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid argument %q, expect field=value", arg)
		}
		if err := r.SetField(msg, kv[0], kv[1]); err != nil {
			return nil, err
		}
	}
	return msg, nil
}
