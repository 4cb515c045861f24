package kserve

import (
	"encoding/binary"
	"encoding/json"
	"math"

	"github.com/pkg/errors"
)

// datatypeSize returns the byte width of one element of the datatype
func datatypeSize(datatype string) (int, error) {
	switch datatype {
	case DatatypeBool, DatatypeUint8, DatatypeInt8:
		return 1, nil
	case DatatypeUint16, DatatypeInt16, DatatypeFP16:
		return 2, nil
	case DatatypeUint32, DatatypeInt32, DatatypeFP32:
		return 4, nil
	case DatatypeInt64, DatatypeFP64:
		return 8, nil
	}

	return 0, errors.Wrap(ErrUnsupportedDatatype, datatype)
}

// decodeBinary converts a little endian raw tensor buffer to float32 values
func decodeBinary(datatype string, buf []byte) ([]float32, error) {

	size, err := datatypeSize(datatype)

	if err != nil {
		return nil, err
	}

	if len(buf)%size != 0 {
		return nil, errors.Errorf("%s buffer of %d bytes is not a multiple of %d",
			datatype, len(buf), size)
	}

	n := len(buf) / size
	out := make([]float32, n)
	le := binary.LittleEndian

	for i := 0; i < n; i++ {
		b := buf[i*size : (i+1)*size]

		switch datatype {
		case DatatypeBool, DatatypeUint8:
			out[i] = float32(b[0])
		case DatatypeInt8:
			out[i] = float32(int8(b[0]))
		case DatatypeUint16:
			out[i] = float32(le.Uint16(b))
		case DatatypeInt16:
			out[i] = float32(int16(le.Uint16(b)))
		case DatatypeFP16:
			out[i] = halfToFloat32(le.Uint16(b))
		case DatatypeUint32:
			out[i] = float32(le.Uint32(b))
		case DatatypeInt32:
			out[i] = float32(int32(le.Uint32(b)))
		case DatatypeFP32:
			out[i] = math.Float32frombits(le.Uint32(b))
		case DatatypeInt64:
			out[i] = float32(int64(le.Uint64(b)))
		case DatatypeFP64:
			out[i] = float32(math.Float64frombits(le.Uint64(b)))
		}
	}

	return out, nil
}

// decodeJSON converts the JSON data array of an output to float32 values.
// Nested arrays are flattened in row major order.
func decodeJSON(datatype string, raw json.RawMessage) ([]float32, error) {

	if _, err := datatypeSize(datatype); err != nil {
		return nil, err
	}

	var data []interface{}

	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, errors.Wrap(err, "error decoding output data")
	}

	out := make([]float32, 0, len(data))

	return flatten(out, data)
}

func flatten(out []float32, data []interface{}) ([]float32, error) {

	var err error

	for _, v := range data {
		switch val := v.(type) {
		case float64:
			out = append(out, float32(val))
		case bool:
			if val {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}
		case []interface{}:
			out, err = flatten(out, val)
			if err != nil {
				return nil, err
			}
		default:
			return nil, errors.Errorf("unexpected output element %T", v)
		}
	}

	return out, nil
}
