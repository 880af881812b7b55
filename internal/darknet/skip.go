package darknet

import "sort"

// SkipPolicy maps reserved layer indices to the number of floats the
// loader steps over instead of loading that layer.
//
// For a detection convolution the count is its bias plus kernel, as stored
// in the file being read; it depends on the file, not on the model the
// values are loaded into.
type SkipPolicy map[int]int

// FullNetworkSkips returns the reserved detection convolutions of a COCO
// YOLOv3 file: 255 filters over 1024, 512 and 256 input channels.
func FullNetworkSkips() SkipPolicy {
	return SkipPolicy{
		81:  255 + 1024*255,
		93:  255 + 512*255,
		105: 255 + 256*255,
	}
}

// BackboneSkips returns the policy used by backbone-only loads.
//
// Index 53 is reserved with a size of zero. Skipping it consumes nothing,
// so it is only valid for models whose layer 53 holds no parameters; the
// loader rejects it otherwise rather than shift every later layer.
func BackboneSkips() SkipPolicy {
	return SkipPolicy{53: 0}
}

// HeadSkips builds a policy for detection convolutions with the given
// filter count, keyed by layer index with the layer's input channels.
func HeadSkips(filters int, inChannels map[int]int) SkipPolicy {
	p := make(SkipPolicy, len(inChannels))
	for idx, in := range inChannels {
		p[idx] = filters + in*filters
	}
	return p
}

// Reserved reports whether layer i is in the policy.
func (p SkipPolicy) Reserved(i int) bool {
	_, ok := p[i]
	return ok
}

// Size returns the float count to skip at layer i, 0 if it is not reserved.
func (p SkipPolicy) Size(i int) int {
	return p[i]
}

// Indices returns the reserved layer indices in ascending order.
func (p SkipPolicy) Indices() []int {
	out := make([]int, 0, len(p))
	for idx := range p {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}
