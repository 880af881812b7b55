// Package darknet reads darknet binary weight files into a layered
// parameter registry.
//
// File layout:
//
//	offset 0:  int32 major
//	offset 4:  int32 minor
//	offset 8:  int32 revision
//	offset 12: seen counter, 8 bytes when major*10+minor >= 2 and both
//	           components are below 1000, otherwise 4 bytes
//	rest:      little-endian float32 payload
//
// The payload carries no names or shapes. The loader walks the model's
// layers in index order and, for every convolution, consumes batch-norm
// shift, scale, running mean and running variance (or the bias when there is
// no batch-norm) followed by the kernel, stored as (out, in, kh, kw). Any
// deviation from that order misaligns every later read, so each consumption
// is driven by the model's static per-layer schema and every overrun is
// fatal.
//
// Example:
//
//	l, err := darknet.Open("yolov3.weights")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	net, _ := yolo.NewNetwork(80)
//	res, err := l.LoadFullNetwork(net, false)
package darknet
