package chessboard

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"
)

const (
	squarePx   = 32
	discRadius = 12
	glyphScale = 2
)

var (
	lightSquare = color.RGBA{240, 217, 181, 255}
	darkSquare  = color.RGBA{181, 136, 99, 255}
	whiteFill   = color.RGBA{250, 250, 250, 255}
	blackFill   = color.RGBA{30, 30, 30, 255}
)

// 5x7 letter bitmaps, one per piece type.
var glyphs = map[byte][7]string{
	'K': {"1...1", "1..1.", "1.1..", "11...", "1.1..", "1..1.", "1...1"},
	'Q': {".111.", "1...1", "1...1", "1...1", "1.1.1", "1..1.", ".11.1"},
	'R': {"1111.", "1...1", "1...1", "1111.", "1.1..", "1..1.", "1...1"},
	'B': {"1111.", "1...1", "1...1", "1111.", "1...1", "1...1", "1111."},
	'N': {"1...1", "11..1", "1.1.1", "1..11", "1...1", "1...1", "1...1"},
	'P': {"1111.", "1...1", "1...1", "1111.", "1....", "1....", "1...."},
}

// PNG renders the position from white's side, a8 in the top-left corner.
func (b *Board) PNG() ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, 8*squarePx, 8*squarePx))

	for r, row := range strings.Split(b.ASCII(), "\n") {
		for f, cell := range strings.Fields(row) {
			sq := image.Rect(f*squarePx, r*squarePx, (f+1)*squarePx, (r+1)*squarePx)
			bg := lightSquare
			if (r+f)%2 == 1 {
				bg = darkSquare
			}
			draw.Draw(img, sq, &image.Uniform{C: bg}, image.Point{}, draw.Src)
			if cell != "." {
				drawPiece(img, sq, cell[0])
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func drawPiece(img *image.RGBA, sq image.Rectangle, letter byte) {
	fill, ink := blackFill, whiteFill
	if letter >= 'A' && letter <= 'Z' {
		fill, ink = whiteFill, blackFill
	}

	cx, cy := sq.Min.X+squarePx/2, sq.Min.Y+squarePx/2
	for y := -discRadius; y <= discRadius; y++ {
		for x := -discRadius; x <= discRadius; x++ {
			if x*x+y*y <= discRadius*discRadius {
				img.SetRGBA(cx+x, cy+y, fill)
			}
		}
	}

	glyph, ok := glyphs[upper(letter)]
	if !ok {
		return
	}
	left := cx - 5*glyphScale/2
	top := cy - 7*glyphScale/2
	for gy, line := range glyph {
		for gx := range line {
			if line[gx] != '1' {
				continue
			}
			for dy := 0; dy < glyphScale; dy++ {
				for dx := 0; dx < glyphScale; dx++ {
					img.SetRGBA(left+gx*glyphScale+dx, top+gy*glyphScale+dy, ink)
				}
			}
		}
	}
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}
