package classfile

import "math"

func bitsToFloat32(bits uint32) float32 { return math.Float32frombits(bits) }
func bitsToFloat64(bits uint64) float64 { return math.Float64frombits(bits) }

func float32bits(v float32) uint32 { return math.Float32bits(v) }
func float64bits(v float64) uint64 { return math.Float64bits(v) }
