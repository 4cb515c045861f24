package kserve

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/x448/float16"
	"go.viam.com/test"
)

func TestNewClientAddress(t *testing.T) {
	_, err := NewClient("localhost:8000")
	test.That(t, err, test.ShouldNotBeNil)

	c, err := NewClient("http://localhost:8000", WithRetries(0, 0))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c.retries, test.ShouldEqual, 1)
}

func TestReady(t *testing.T) {

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/health/ready", "/v2/models/rtdetr/ready":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	test.That(t, err, test.ShouldBeNil)

	ctx := context.Background()
	test.That(t, c.Ready(ctx), test.ShouldBeNil)
	test.That(t, c.ModelReady(ctx, "rtdetr", ""), test.ShouldBeNil)

	err = c.ModelReady(ctx, "vitpose", "1")
	test.That(t, errors.Is(err, ErrServerNotReady), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "v2/models/vitpose/versions/1/ready")
}

func TestMetadata(t *testing.T) {

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		test.That(t, r.URL.Path, test.ShouldEqual, "/v2/models/vitpose")
		w.Write([]byte(`{"name":"vitpose","versions":["1"],"platform":"onnxruntime_onnx",
			"inputs":[{"name":"pixel_values","datatype":"FP32","shape":[-1,3,256,192]}],
			"outputs":[{"name":"keypoints","datatype":"FP32","shape":[-1,17,3]}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	test.That(t, err, test.ShouldBeNil)

	md, err := c.Metadata(context.Background(), "vitpose", "")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, md.Platform, test.ShouldEqual, "onnxruntime_onnx")

	in, ok := md.Input("pixel_values")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, in.Shape, test.ShouldResemble, []int64{-1, 3, 256, 192})

	_, ok = md.Input("missing")
	test.That(t, ok, test.ShouldBeFalse)
}

func TestInferJSON(t *testing.T) {

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		test.That(t, r.Method, test.ShouldEqual, http.MethodPost)
		test.That(t, r.URL.Path, test.ShouldEqual, "/v2/models/vitpose/versions/2/infer")

		var req InferRequest
		test.That(t, json.NewDecoder(r.Body).Decode(&req), test.ShouldBeNil)
		test.That(t, req.ID, test.ShouldNotBeEmpty)
		test.That(t, req.Inputs, test.ShouldHaveLength, 1)
		test.That(t, req.Inputs[0].Data, test.ShouldResemble, []float32{1, 2, 3, 4})

		w.Write([]byte(`{"model_name":"vitpose","id":"` + req.ID + `","outputs":[
			{"name":"keypoints","datatype":"FP32","shape":[1,2,3],"data":[[1.5,2,0.5],[3,4,0.25]]},
			{"name":"valid","datatype":"BOOL","shape":[2],"data":[true,false]}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	test.That(t, err, test.ShouldBeNil)

	res, err := c.Infer(context.Background(), InferRequest{
		Model:   "vitpose",
		Version: "2",
		Inputs: []Tensor{{
			Name: "pixel_values", Datatype: DatatypeFP32,
			Shape: []int64{1, 4}, Data: []float32{1, 2, 3, 4},
		}},
	})
	test.That(t, err, test.ShouldBeNil)

	kp, err := res.Output("keypoints")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, kp.Values, test.ShouldResemble, []float32{1.5, 2, 0.5, 3, 4, 0.25})

	valid, err := res.Output("valid")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, valid.Values, test.ShouldResemble, []float32{1, 0})

	_, err = res.Output("heatmaps")
	test.That(t, errors.Is(err, ErrOutputNotFound), test.ShouldBeTrue)
}

func TestInferBinary(t *testing.T) {

	var raw bytes.Buffer

	// FP32 output of two values
	for _, v := range []float32{0.75, -2} {
		binary.Write(&raw, binary.LittleEndian, math.Float32bits(v))
	}

	// FP16 output of three values
	for _, v := range []float32{1.5, 0.25, 8} {
		binary.Write(&raw, binary.LittleEndian, float16.Fromfloat32(v).Bits())
	}

	// INT64 labels
	binary.Write(&raw, binary.LittleEndian, int64(3))

	header := []byte(`{"model_name":"rtdetr","outputs":[
		{"name":"scores","datatype":"FP32","shape":[2],"parameters":{"binary_data_size":8}},
		{"name":"half","datatype":"FP16","shape":[3],"parameters":{"binary_data_size":6}},
		{"name":"labels","datatype":"INT64","shape":[1],"parameters":{"binary_data_size":8}}]}`)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req InferRequest
		test.That(t, json.NewDecoder(r.Body).Decode(&req), test.ShouldBeNil)
		test.That(t, req.Parameters["binary_data_output"], test.ShouldEqual, true)

		w.Header().Set(headerContentLength, strconv.Itoa(len(header)))
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(header)
		w.Write(raw.Bytes())
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, WithBinaryOutput(true))
	test.That(t, err, test.ShouldBeNil)

	res, err := c.Infer(context.Background(), InferRequest{Model: "rtdetr"})
	test.That(t, err, test.ShouldBeNil)

	scores, _ := res.Output("scores")
	test.That(t, scores.Values, test.ShouldResemble, []float32{0.75, -2})

	half, _ := res.Output("half")
	test.That(t, half.Values, test.ShouldResemble, []float32{1.5, 0.25, 8})

	labels, _ := res.Output("labels")
	test.That(t, labels.Values, test.ShouldResemble, []float32{3})
}

func TestInferServerError(t *testing.T) {

	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"unexpected shape for input 'pixel_values'"}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	test.That(t, err, test.ShouldBeNil)

	_, err = c.Infer(context.Background(), InferRequest{Model: "vitpose"})
	test.That(t, err, test.ShouldNotBeNil)

	var serr *ServerError
	test.That(t, errors.As(err, &serr), test.ShouldBeTrue)
	test.That(t, serr.StatusCode, test.ShouldEqual, http.StatusBadRequest)
	test.That(t, serr.Message, test.ShouldContainSubstring, "unexpected shape")
	// status errors are not retried
	test.That(t, calls.Load(), test.ShouldEqual, int32(1))
}

func TestInferRetriesUnreachable(t *testing.T) {

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	c, err := NewClient(addr, WithRetries(2, time.Millisecond))
	test.That(t, err, test.ShouldBeNil)

	_, err = c.Infer(context.Background(), InferRequest{Model: "vitpose"})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "giving up after 2 attempts")
}

func TestInferTimeoutNotRetried(t *testing.T) {

	var calls atomic.Int32
	release := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, err := NewClient(srv.URL, WithTimeout(50*time.Millisecond),
		WithRetries(3, time.Millisecond))
	test.That(t, err, test.ShouldBeNil)

	start := time.Now()
	_, err = c.Infer(context.Background(), InferRequest{Model: "vitpose"})

	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, context.DeadlineExceeded), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldNotContainSubstring, "giving up")
	test.That(t, calls.Load(), test.ShouldEqual, int32(1))
	test.That(t, time.Since(start).Seconds(), test.ShouldBeLessThan, 1.0)
}

func TestDecodeBinaryErrors(t *testing.T) {
	_, err := decodeBinary("BYTES", []byte{1, 2})
	test.That(t, errors.Is(err, ErrUnsupportedDatatype), test.ShouldBeTrue)

	_, err = decodeBinary(DatatypeFP32, []byte{1, 2, 3})
	test.That(t, err, test.ShouldNotBeNil)

	vals, err := decodeBinary(DatatypeInt8, []byte{0xff, 0x02})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, vals, test.ShouldResemble, []float32{-1, 2})
}
