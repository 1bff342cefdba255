package window

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	_ "image/png" // PNG デコーダを登録
	"log/slog"
	"path"
	"strings"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	_ "golang.org/x/image/bmp" // BMP デコーダを登録

	"github.com/zurustar/scenevm/pkg/fileutil"
)

// DefaultPictureExtension is appended to picture names without one.
const DefaultPictureExtension = ".bmp"

// BMP圧縮方式
const (
	biRLE8 = 1
	biRLE4 = 2
)

// x/image/bmp は RLE 圧縮をサポートしていないため、RLE8/RLE4 だけ自前で展開する
func isRLE(data []byte) bool {
	if len(data) < 54 || data[0] != 'B' || data[1] != 'M' {
		return false
	}
	c := binary.LittleEndian.Uint32(data[30:34])
	return c == biRLE8 || c == biRLE4
}

// DecodePicture decodes a BMP (uncompressed or RLE) or PNG image.
func DecodePicture(data []byte) (image.Image, error) {
	if isRLE(data) {
		return decodeRLE(data)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

func decodeRLE(data []byte) (image.Image, error) {
	le := binary.LittleEndian
	offset := le.Uint32(data[10:14])
	headerSize := le.Uint32(data[14:18])
	width := int(int32(le.Uint32(data[18:22])))
	height := int(int32(le.Uint32(data[22:26])))
	bitCount := le.Uint16(data[28:30])
	compression := le.Uint32(data[30:34])
	colorsUsed := le.Uint32(data[46:50])

	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid RLE bitmap size %dx%d", width, height)
	}
	if (compression == biRLE8 && bitCount != 8) || (compression == biRLE4 && bitCount != 4) {
		return nil, fmt.Errorf("RLE compression %d with %d bits per pixel", compression, bitCount)
	}
	if colorsUsed == 0 {
		colorsUsed = 1 << bitCount
	}

	// パレット（BGRA）
	palStart := 14 + int(headerSize)
	palette := make(color.Palette, colorsUsed)
	for i := range palette {
		p := palStart + i*4
		if p+4 > len(data) {
			return nil, fmt.Errorf("truncated palette")
		}
		palette[i] = color.RGBA{data[p+2], data[p+1], data[p], 0xFF}
	}
	if int(offset) > len(data) {
		return nil, fmt.Errorf("pixel data offset %d beyond file size %d", offset, len(data))
	}

	img := image.NewPaletted(image.Rect(0, 0, width, height), palette)
	set := func(x, row int, idx byte) {
		// RLE ビットマップは常にボトムアップ
		if x < width && row < height {
			img.SetColorIndex(x, height-1-row, idx)
		}
	}

	src := data[offset:]
	x, row := 0, 0
	for i := 0; i+1 < len(src); {
		n, v := src[i], src[i+1]
		i += 2
		if n > 0 {
			// エンコードモード
			for j := 0; j < int(n); j++ {
				idx := v
				if compression == biRLE4 {
					if j%2 == 0 {
						idx = v >> 4
					} else {
						idx = v & 0x0F
					}
				}
				set(x, row, idx)
				x++
			}
			continue
		}
		switch v {
		case 0: // 行末
			x, row = 0, row+1
		case 1: // ビットマップ終端
			return img, nil
		case 2: // デルタ
			if i+1 >= len(src) {
				return nil, fmt.Errorf("truncated RLE delta")
			}
			x += int(src[i])
			row += int(src[i+1])
			i += 2
		default:
			// 絶対モード（2バイト境界にパディングされる）
			count := int(v)
			size := count
			if compression == biRLE4 {
				size = (count + 1) / 2
			}
			if i+size > len(src) {
				return nil, fmt.Errorf("truncated RLE absolute run")
			}
			for j := 0; j < count; j++ {
				var idx byte
				switch {
				case compression == biRLE8:
					idx = src[i+j]
				case j%2 == 0:
					idx = src[i+j/2] >> 4
				default:
					idx = src[i+j/2] & 0x0F
				}
				set(x, row, idx)
				x++
			}
			i += size + size%2
		}
	}
	return img, nil
}

// Pictures loads scene pictures from the game directory and caches them.
// A picture that fails to load is reported once and then skipped.
type Pictures struct {
	fsys    fileutil.FileSystem
	decode  func([]byte) (image.Image, error)
	cache   map[string]*ebiten.Image
	missing map[string]bool
	log     *slog.Logger
	mu      sync.Mutex
}

// NewPictures creates a picture cache over fsys.
func NewPictures(fsys fileutil.FileSystem, log *slog.Logger) *Pictures {
	return &Pictures{
		fsys:    fsys,
		decode:  DecodePicture,
		cache:   make(map[string]*ebiten.Image),
		missing: make(map[string]bool),
		log:     log,
	}
}

// PicturePath normalizes a script picture name to a slash separated path
// with an extension.
func PicturePath(name string) string {
	p := strings.ReplaceAll(name, "\\", "/")
	if path.Ext(p) == "" {
		p += DefaultPictureExtension
	}
	return p
}

// Get returns the picture for name, or nil when it cannot be loaded.
func (p *Pictures) Get(name string) *ebiten.Image {
	if name == "" {
		return nil
	}
	key := strings.ToLower(PicturePath(name))

	p.mu.Lock()
	defer p.mu.Unlock()

	if img, ok := p.cache[key]; ok {
		return img
	}
	if p.missing[key] {
		return nil
	}

	img, err := p.load(PicturePath(name))
	if err != nil {
		p.log.Warn("picture not loaded", "name", name, "error", err)
		p.missing[key] = true
		return nil
	}
	p.cache[key] = img
	p.log.Debug("picture loaded", "name", name, "size", img.Bounds().Size())
	return img
}

func (p *Pictures) load(name string) (*ebiten.Image, error) {
	data, err := p.fsys.ReadFile(name)
	if err != nil {
		return nil, err
	}
	img, err := p.decode(data)
	if err != nil {
		return nil, err
	}
	return ebiten.NewImageFromImage(img), nil
}

// Len returns the number of cached pictures.
func (p *Pictures) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cache)
}
