package footprint

import (
	"fmt"

	"github.com/paulmach/orb/encoding/wkb"
	"github.com/vmihailenco/msgpack/v5"
)

// Footprint carries an orb.Geometry interface value, which msgpack cannot
// round-trip on its own, so the cache codec goes through WKB for the
// geometry and plain fields for the rest.

var (
	_ msgpack.CustomEncoder = (*Footprint)(nil)
	_ msgpack.CustomDecoder = (*Footprint)(nil)
)

// EncodeMsgpack implements msgpack.CustomEncoder.
func (f *Footprint) EncodeMsgpack(enc *msgpack.Encoder) error {
	var geom []byte
	if f.Geometry != nil {
		var err error
		geom, err = wkb.Marshal(f.Geometry)
		if err != nil {
			return fmt.Errorf("encoding footprint %s geometry: %w", f.ID, err)
		}
	}
	return enc.EncodeMulti(f.ID, geom, f.Height, f.Levels, f.Type, f.Name)
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (f *Footprint) DecodeMsgpack(dec *msgpack.Decoder) error {
	var geom []byte
	if err := dec.DecodeMulti(&f.ID, &geom, &f.Height, &f.Levels, &f.Type, &f.Name); err != nil {
		return err
	}
	if len(geom) == 0 {
		f.Geometry = nil
		return nil
	}
	g, err := wkb.Unmarshal(geom)
	if err != nil {
		return fmt.Errorf("decoding footprint %s geometry: %w", f.ID, err)
	}
	f.Geometry = g
	return nil
}
