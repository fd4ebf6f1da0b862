package world

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const (
	previewTileWidth    = 8
	previewTileHeight   = 4
	previewBlockHeight  = 4
	previewAmbientLight = 0.2
)

type blockPreview struct {
	inst    Instance
	localX  int
	localY  int
	localZ  int
	screenX int
	screenY int
}

// SaveChunkPreview renders the chunk's current mesh as an isometric PNG in
// outputDir and returns the file path. Only exposed voxels are drawn.
func SaveChunkPreview(chunk *Chunk, outputDir string) (string, error) {
	if chunk == nil {
		return "", errors.New("chunk is nil")
	}
	mesh := chunk.Mesh()
	if mesh == nil {
		return "", fmt.Errorf("chunk %s has no mesh", chunk.Coord())
	}
	if err := ensurePreviewDir(outputDir); err != nil {
		return "", err
	}

	width := (ChunkWidth+ChunkDepth)*previewTileWidth/2 + previewTileWidth
	height := (ChunkWidth+ChunkDepth)*previewTileHeight/2 + ChunkHeight*previewBlockHeight + previewTileHeight
	img := image.NewNRGBA(image.Rect(0, 0, width, height))

	background := color.NRGBA{R: 10, G: 10, B: 18, A: 255}
	draw.Draw(img, img.Bounds(), &image.Uniform{background}, image.Point{}, draw.Src)

	blocks := collectPreviewBlocks(chunk, mesh)
	// Painter's order: back to front, bottom to top.
	sort.Slice(blocks, func(i, j int) bool {
		bi, bj := blocks[i], blocks[j]
		if di, dj := bi.localX+bi.localZ, bj.localX+bj.localZ; di != dj {
			return di < dj
		}
		if bi.localY != bj.localY {
			return bi.localY < bj.localY
		}
		return bi.localX < bj.localX
	})

	offsetX := ChunkDepth*previewTileWidth/2 + previewTileWidth/2
	offsetY := ChunkHeight * previewBlockHeight
	for _, info := range blocks {
		renderBlockPreview(img, offsetX+info.screenX, offsetY+info.screenY, info.inst)
	}

	coord := chunk.Coord()
	path := filepath.Join(outputDir, fmt.Sprintf("chunk_%d_%d.png", coord.X, coord.Z))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create preview: %w", err)
	}
	defer file.Close()
	if err := png.Encode(file, img); err != nil {
		return "", fmt.Errorf("encode preview: %w", err)
	}
	return path, nil
}

func collectPreviewBlocks(chunk *Chunk, mesh *Mesh) []blockPreview {
	o := chunk.Coord().Origin()
	blocks := make([]blockPreview, 0, len(mesh.Instances))
	for _, inst := range mesh.Instances {
		lx := int(inst.Position.X()) - o.X
		ly := int(inst.Position.Y())
		lz := int(inst.Position.Z()) - o.Z
		blocks = append(blocks, blockPreview{
			inst:    inst,
			localX:  lx,
			localY:  ly,
			localZ:  lz,
			screenX: (lx - lz) * previewTileWidth / 2,
			screenY: (lx+lz)*previewTileHeight/2 - ly*previewBlockHeight,
		})
	}
	return blocks
}

func renderBlockPreview(img *image.NRGBA, baseX, baseY int, inst Instance) {
	baseColor, emission := Appearance(inst.Block)
	emission = clamp(emission, 0, 1)

	topColor := applyLighting(baseColor, previewAmbientLight+0.4+0.6*emission)
	leftColor := applyLighting(baseColor, previewAmbientLight+0.25+0.4*emission)
	rightColor := applyLighting(baseColor, previewAmbientLight+0.15+0.3*emission)

	top := []image.Point{
		{X: baseX, Y: baseY - previewBlockHeight},
		{X: baseX + previewTileWidth/2, Y: baseY - previewBlockHeight + previewTileHeight/2},
		{X: baseX, Y: baseY - previewBlockHeight + previewTileHeight},
		{X: baseX - previewTileWidth/2, Y: baseY - previewBlockHeight + previewTileHeight/2},
	}
	left := []image.Point{
		{X: baseX - previewTileWidth/2, Y: baseY - previewBlockHeight + previewTileHeight/2},
		{X: baseX, Y: baseY - previewBlockHeight + previewTileHeight},
		{X: baseX, Y: baseY + previewTileHeight},
		{X: baseX - previewTileWidth/2, Y: baseY + previewTileHeight/2},
	}
	right := []image.Point{
		{X: baseX + previewTileWidth/2, Y: baseY - previewBlockHeight + previewTileHeight/2},
		{X: baseX, Y: baseY - previewBlockHeight + previewTileHeight},
		{X: baseX, Y: baseY + previewTileHeight},
		{X: baseX + previewTileWidth/2, Y: baseY + previewTileHeight/2},
	}

	fillPolygon(img, left, leftColor)
	fillPolygon(img, right, rightColor)
	fillPolygon(img, top, topColor)
}

func parseHexColor(value string) (color.NRGBA, bool) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "#")
	if len(trimmed) != 6 {
		return color.NRGBA{}, false
	}
	v, err := strconv.ParseUint(trimmed, 16, 32)
	if err != nil {
		return color.NRGBA{}, false
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, true
}

func applyLighting(base color.NRGBA, factor float64) color.NRGBA {
	factor = clamp(factor, 0, 1)
	return color.NRGBA{
		R: uint8(math.Round(float64(base.R) * factor)),
		G: uint8(math.Round(float64(base.G) * factor)),
		B: uint8(math.Round(float64(base.B) * factor)),
		A: 255,
	}
}

func clamp(value, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, value))
}

// fillPolygon scanline-fills a convex polygon clipped to the image.
func fillPolygon(img *image.NRGBA, pts []image.Point, col color.NRGBA) {
	if len(pts) < 3 {
		return
	}
	minY, maxY := pts[0].Y, pts[0].Y
	for _, p := range pts[1:] {
		minY = min(minY, p.Y)
		maxY = max(maxY, p.Y)
	}
	bounds := img.Bounds()
	minY = max(minY, bounds.Min.Y)
	maxY = min(maxY, bounds.Max.Y-1)

	xs := make([]int, 0, len(pts))
	for y := minY; y <= maxY; y++ {
		xs = xs[:0]
		for i := range pts {
			j := (i + 1) % len(pts)
			x1, y1 := pts[i].X, pts[i].Y
			x2, y2 := pts[j].X, pts[j].Y
			if y1 == y2 || y < min(y1, y2) || y >= max(y1, y2) {
				continue
			}
			xs = append(xs, x1+(y-y1)*(x2-x1)/(y2-y1))
		}
		if len(xs) < 2 {
			continue
		}
		sort.Ints(xs)
		for i := 0; i+1 < len(xs); i += 2 {
			xStart := max(xs[i], bounds.Min.X)
			xEnd := min(xs[i+1], bounds.Max.X-1)
			for x := xStart; x <= xEnd; x++ {
				img.SetNRGBA(x, y, col)
			}
		}
	}
}

func ensurePreviewDir(dir string) error {
	if dir == "" {
		return errors.New("output directory is empty")
	}
	return os.MkdirAll(dir, 0o755)
}
