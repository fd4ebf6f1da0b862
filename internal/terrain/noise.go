package terrain

// NoiseField is a seeded simplex noise sampler. Output lies in [-1, 1] and is
// a pure function of the seed and the coordinates, so a field can be shared
// freely between goroutines.
type NoiseField struct {
	seed int64
	perm [512]uint8
}

var gradients = [12][3]float64{
	{1, 1, 0}, {-1, 1, 0}, {1, -1, 0}, {-1, -1, 0},
	{1, 0, 1}, {-1, 0, 1}, {1, 0, -1}, {-1, 0, -1},
	{0, 1, 1}, {0, -1, 1}, {0, 1, -1}, {0, -1, -1},
}

// NewNoiseField shuffles the permutation table with an LCG driven by seed.
func NewNoiseField(seed int64) *NoiseField {
	f := &NoiseField{seed: seed}
	var p [256]uint8
	for i := range p {
		p[i] = uint8(i)
	}
	state := uint64(seed)
	for i := 255; i > 0; i-- {
		state = state*6364136223846793005 + 1442695040888963407
		j := int((state >> 33) % uint64(i+1))
		p[i], p[j] = p[j], p[i]
	}
	for i := range f.perm {
		f.perm[i] = p[i&255]
	}
	return f
}

func (f *NoiseField) Seed() int64 { return f.seed }

const (
	skew2   = 0.36602540378443864676 // (sqrt(3)-1)/2
	unskew2 = 0.21132486540518711775 // (3-sqrt(3))/6
	skew3   = 1.0 / 3.0
	unskew3 = 1.0 / 6.0
)

// Noise2D samples the field on the XZ plane.
func (f *NoiseField) Noise2D(x, y float64) float64 {
	s := (x + y) * skew2
	i := floor(x + s)
	j := floor(y + s)
	t := float64(i+j) * unskew2
	x0 := x - (float64(i) - t)
	y0 := y - (float64(j) - t)

	i1, j1 := 0, 1
	if x0 > y0 {
		i1, j1 = 1, 0
	}

	ii, jj := i&255, j&255
	sum := f.corner2(f.grad(ii+f.perm2(jj)), x0, y0)
	sum += f.corner2(f.grad(ii+i1+f.perm2(jj+j1)), x0-float64(i1)+unskew2, y0-float64(j1)+unskew2)
	sum += f.corner2(f.grad(ii+1+f.perm2(jj+1)), x0-1+2*unskew2, y0-1+2*unskew2)
	return clamp(70*sum, -1, 1)
}

// Noise3D samples the field in 3D.
func (f *NoiseField) Noise3D(x, y, z float64) float64 {
	s := (x + y + z) * skew3
	i := floor(x + s)
	j := floor(y + s)
	k := floor(z + s)
	t := float64(i+j+k) * unskew3
	x0 := x - (float64(i) - t)
	y0 := y - (float64(j) - t)
	z0 := z - (float64(k) - t)

	var i1, j1, k1, i2, j2, k2 int
	switch {
	case x0 >= y0 && y0 >= z0:
		i1, i2, j2 = 1, 1, 1
	case x0 >= y0 && x0 >= z0:
		i1, i2, k2 = 1, 1, 1
	case x0 >= y0:
		k1, i2, k2 = 1, 1, 1
	case y0 < z0:
		k1, j2, k2 = 1, 1, 1
	case x0 < z0:
		j1, j2, k2 = 1, 1, 1
	default:
		j1, i2, j2 = 1, 1, 1
	}

	ii, jj, kk := i&255, j&255, k&255
	hash := func(di, dj, dk int) int {
		return f.grad(ii + di + f.perm2(jj+dj+f.perm2(kk+dk)))
	}
	sum := f.corner3(hash(0, 0, 0), x0, y0, z0)
	sum += f.corner3(hash(i1, j1, k1), x0-float64(i1)+unskew3, y0-float64(j1)+unskew3, z0-float64(k1)+unskew3)
	sum += f.corner3(hash(i2, j2, k2), x0-float64(i2)+2*unskew3, y0-float64(j2)+2*unskew3, z0-float64(k2)+2*unskew3)
	sum += f.corner3(hash(1, 1, 1), x0-1+3*unskew3, y0-1+3*unskew3, z0-1+3*unskew3)
	return clamp(32*sum, -1, 1)
}

// Octave2D layers octaves, doubling frequency and scaling amplitude by
// persistence each step. The result is normalised back into [-1, 1].
func (f *NoiseField) Octave2D(x, y float64, octaves int, persistence float64) float64 {
	total, amplitude, norm, frequency := 0.0, 1.0, 0.0, 1.0
	for o := 0; o < octaves; o++ {
		total += f.Noise2D(x*frequency, y*frequency) * amplitude
		norm += amplitude
		amplitude *= persistence
		frequency *= 2
	}
	if norm == 0 {
		return 0
	}
	return total / norm
}

func (f *NoiseField) Octave3D(x, y, z float64, octaves int, persistence float64) float64 {
	total, amplitude, norm, frequency := 0.0, 1.0, 0.0, 1.0
	for o := 0; o < octaves; o++ {
		total += f.Noise3D(x*frequency, y*frequency, z*frequency) * amplitude
		norm += amplitude
		amplitude *= persistence
		frequency *= 2
	}
	if norm == 0 {
		return 0
	}
	return total / norm
}

func (f *NoiseField) perm2(i int) int { return int(f.perm[i]) }

func (f *NoiseField) grad(i int) int { return int(f.perm[i]) % 12 }

func (f *NoiseField) corner2(g int, x, y float64) float64 {
	t := 0.5 - x*x - y*y
	if t < 0 {
		return 0
	}
	t *= t
	return t * t * (gradients[g][0]*x + gradients[g][1]*y)
}

func (f *NoiseField) corner3(g int, x, y, z float64) float64 {
	t := 0.6 - x*x - y*y - z*z
	if t < 0 {
		return 0
	}
	t *= t
	return t * t * (gradients[g][0]*x + gradients[g][1]*y + gradients[g][2]*z)
}

func floor(v float64) int {
	i := int(v)
	if v < float64(i) {
		return i - 1
	}
	return i
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
