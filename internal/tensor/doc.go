// Package tensor provides the dense float32 tensor used for parameters,
// gradients and network outputs.
//
// Only the operations the weight loader and optimizers need live here:
// shape arithmetic, row-major views, axis permutation and little-endian
// byte encoding for checkpoints.
package tensor
