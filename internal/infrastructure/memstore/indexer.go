package memstore

import (
	"encoding/binary"
	"fmt"

	"github.com/zinrai/l2network-mvp-go/internal/domain"
)

// vlanIndexer keys objects by VLAN ID in big-endian form so that iterating
// the index, and any non-unique index suffixed with it, walks IDs in
// ascending numeric order.
type vlanIndexer struct{}

func encodeVlanID(id int) ([]byte, error) {
	if id < 0 || id > 0xffff {
		return nil, fmt.Errorf("vlan id %d out of range", id)
	}
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, uint16(id))
	return buf, nil
}

func (vlanIndexer) FromArgs(args ...interface{}) ([]byte, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("must provide only a single argument")
	}
	id, ok := args[0].(int)
	if !ok {
		return nil, fmt.Errorf("argument must be an int: %#v", args[0])
	}
	return encodeVlanID(id)
}

func (vlanIndexer) FromObject(obj interface{}) (bool, []byte, error) {
	var id int
	switch o := obj.(type) {
	case *domain.VlanID:
		id = o.VlanID
	case *domain.VlanBinding:
		id = o.VlanID
	default:
		return false, nil, fmt.Errorf("unexpected type %T", obj)
	}
	val, err := encodeVlanID(id)
	if err != nil {
		return false, nil, err
	}
	return true, val, nil
}
