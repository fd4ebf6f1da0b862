package voxel

// Hash3 mixes a seed and integer coordinates into a well distributed value.
// It replaces shared random sources wherever a per-voxel draw must stay a
// pure function of the world seed.
func Hash3(seed int64, x, y, z int) uint64 {
	h := uint64(seed)*0x9e3779b97f4a7c15 ^
		uint64(int64(x))*0xbf58476d1ce4e5b9 ^
		uint64(int64(y))*0x94d049bb133111eb ^
		uint64(int64(z))*0xd6e8feb86659fd93
	h ^= h >> 30
	h *= 0xbf58476d1ce4e5b9
	h ^= h >> 27
	h *= 0x94d049bb133111eb
	return h ^ (h >> 31)
}

// Chance returns a deterministic draw in [0, 1) for the given voxel.
func Chance(seed int64, x, y, z int) float64 {
	return float64(Hash3(seed, x, y, z)>>11) / (1 << 53)
}
