package kserve

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// Datatype names of the KServe v2 inference protocol
const (
	DatatypeBool   = "BOOL"
	DatatypeUint8  = "UINT8"
	DatatypeUint16 = "UINT16"
	DatatypeUint32 = "UINT32"
	DatatypeInt8   = "INT8"
	DatatypeInt16  = "INT16"
	DatatypeInt32  = "INT32"
	DatatypeInt64  = "INT64"
	DatatypeFP16   = "FP16"
	DatatypeFP32   = "FP32"
	DatatypeFP64   = "FP64"
)

// Parameters are the free form parameters attached to requests, inputs and
// outputs
type Parameters map[string]interface{}

// Tensor is an input tensor of an inference request
type Tensor struct {
	Name       string     `json:"name"`
	Shape      []int64    `json:"shape"`
	Datatype   string     `json:"datatype"`
	Parameters Parameters `json:"parameters,omitempty"`
	Data       []float32  `json:"data"`
}

// RequestOutput names an output the caller wants returned
type RequestOutput struct {
	Name       string     `json:"name"`
	Parameters Parameters `json:"parameters,omitempty"`
}

// InferRequest is the body of a model infer call
type InferRequest struct {
	// Model and Version select the model, they are not serialized
	Model   string `json:"-"`
	Version string `json:"-"`

	ID         string          `json:"id,omitempty"`
	Parameters Parameters      `json:"parameters,omitempty"`
	Inputs     []Tensor        `json:"inputs"`
	Outputs    []RequestOutput `json:"outputs,omitempty"`
}

// Output is a tensor returned by the model.  Values holds the decoded data
// regardless of whether it arrived as JSON or binary.
type Output struct {
	Name       string          `json:"name"`
	Shape      []int64         `json:"shape"`
	Datatype   string          `json:"datatype"`
	Parameters Parameters      `json:"parameters,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Values     []float32       `json:"-"`
}

// InferResponse is the result of a model infer call
type InferResponse struct {
	ModelName    string     `json:"model_name"`
	ModelVersion string     `json:"model_version,omitempty"`
	ID           string     `json:"id,omitempty"`
	Parameters   Parameters `json:"parameters,omitempty"`
	Outputs      []Output   `json:"outputs"`
}

// Output returns the named output tensor
func (r *InferResponse) Output(name string) (*Output, error) {

	for i := range r.Outputs {
		if r.Outputs[i].Name == name {
			return &r.Outputs[i], nil
		}
	}

	return nil, errors.Wrapf(ErrOutputNotFound, "output %q", name)
}

// TensorMetadata describes a model input or output
type TensorMetadata struct {
	Name     string  `json:"name"`
	Datatype string  `json:"datatype"`
	Shape    []int64 `json:"shape"`
}

// ModelMetadata is the response of the model metadata endpoint
type ModelMetadata struct {
	Name     string           `json:"name"`
	Versions []string         `json:"versions,omitempty"`
	Platform string           `json:"platform"`
	Inputs   []TensorMetadata `json:"inputs"`
	Outputs  []TensorMetadata `json:"outputs"`
}

// Input returns the named input metadata
func (m *ModelMetadata) Input(name string) (TensorMetadata, bool) {
	for _, in := range m.Inputs {
		if in.Name == name {
			return in, true
		}
	}
	return TensorMetadata{}, false
}

// ServerError is a non success HTTP response from the model server
type ServerError struct {
	StatusCode int
	Message    string `json:"error"`
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("model server returned status %d: %s", e.StatusCode, e.Message)
}
