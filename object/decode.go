package object

import "encoding/json"

// Unknown is the fallback variant for a CoatyObject whose CoreType the
// receiving agent does not recognize (a forward-compatibility escape
// hatch: an older agent must not crash on a newer agent's custom
// object). Raw carries the complete original payload so the object can
// still be forwarded, stored, or filtered on its well-known CoatyObject
// fields.
type Unknown struct {
	CoatyObject
	Raw json.RawMessage `json:"-"`
}

// coreTypeProbe is used only to read the coreType discriminator before
// deciding which concrete Go type to decode the full payload into.
type coreTypeProbe struct {
	CoreType CoreType `json:"coreType"`
}

// Decode unmarshals a JSON object payload into the concrete Go type
// matching its coreType, or into Unknown if the coreType is absent or
// not one of the closed set. The returned value is always an Object.
func Decode(data []byte) (Object, error) {
	var probe coreTypeProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}

	var target Object
	switch probe.CoreType {
	case CoreTypeIdentity:
		target = &Identity{}
	case CoreTypeIoSource:
		target = &IoSource{}
	case CoreTypeIoActor:
		target = &IoActor{}
	case CoreTypeIoNode:
		target = &IoNode{}
	case CoreTypeLog:
		target = &Log{}
	case CoreTypeDevice:
		target = &Device{}
	case CoreTypeLocation:
		target = &Location{}
	case CoreTypeAnnotation:
		target = &Annotation{}
	case CoreTypeTask:
		target = &Task{}
	case CoreTypeUser:
		target = &User{}
	case CoreTypeSnapshot:
		target = &Snapshot{}
	case CoreTypeCoatyObject:
		target = &CoatyObject{}
	default:
		u := &Unknown{Raw: append(json.RawMessage(nil), data...)}
		if err := json.Unmarshal(data, &u.CoatyObject); err != nil {
			return nil, err
		}
		return u, nil
	}

	if err := json.Unmarshal(data, target); err != nil {
		return nil, err
	}
	return target, nil
}

// MarshalJSON for Unknown re-emits the original payload verbatim rather
// than re-serializing the (possibly lossy) decoded CoatyObject fields,
// so round-tripping an object of an unrecognized type through this
// agent is lossless.
func (u *Unknown) MarshalJSON() ([]byte, error) {
	if len(u.Raw) > 0 {
		return u.Raw, nil
	}
	return json.Marshal(u.CoatyObject)
}
