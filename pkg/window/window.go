// Package window is the interactive front-end: an Ebitengine game that ticks
// the engine once per frame, draws its scene and turns clicks into exits.
package window

import (
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/image/font/basicfont"

	"github.com/zurustar/scenevm/pkg/engine"
	"github.com/zurustar/scenevm/pkg/fileutil"
	"github.com/zurustar/scenevm/pkg/logger"
)

var (
	// 背景色 #0087C8
	backgroundColor = color.RGBA{0x00, 0x87, 0xC8, 0xFF}
	// テキスト色（白）
	textColor = color.White
	// 出口の枠（黄色）
	exitColor = color.RGBA{0xFF, 0xFF, 0x00, 0xFF}
	// ステータス行の背景（半透明黒）
	statusBgColor = color.RGBA{0x00, 0x00, 0x00, 0xA0}
	// デフォルトフォント
	defaultFace = text.NewGoXFace(basicfont.Face7x13)
)

const statusHeight = 17

// Engine is the part of engine.Engine the window drives.
type Engine interface {
	Update() error
	Click(x, y int) bool
	ExitAt(x, y int) (engine.Exit, bool)
	Scene() engine.Scene
	Terminate()
}

// Options configures the window.
type Options struct {
	Title     string
	Width     int
	Height    int
	Scale     float64
	TPS       int
	ShowExits bool
}

// Game はEbitengineのゲームインターフェースを実装する
type Game struct {
	eng      Engine
	pictures *Pictures
	opts     Options
	log      *slog.Logger

	cursor ebiten.CursorShapeType
	err    error
}

// NewGame creates the game for eng. Pictures are read from fsys.
func NewGame(eng Engine, fsys fileutil.FileSystem, opts Options) *Game {
	log := logger.GetLogger()
	return &Game{
		eng:      eng,
		pictures: NewPictures(fsys, log),
		opts:     opts,
		log:      log,
		cursor:   ebiten.CursorShapeDefault,
	}
}

// CursorShape maps the cursor name given to Exit() to an Ebitengine cursor.
func CursorShape(name string) ebiten.CursorShapeType {
	switch strings.ToLower(name) {
	case "text":
		return ebiten.CursorShapeText
	case "crosshair", "cross":
		return ebiten.CursorShapeCrosshair
	case "move":
		return ebiten.CursorShapeMove
	case "ewresize", "left", "right":
		return ebiten.CursorShapeEWResize
	case "nsresize", "up", "down":
		return ebiten.CursorShapeNSResize
	case "notallowed", "no":
		return ebiten.CursorShapeNotAllowed
	default:
		return ebiten.CursorShapePointer
	}
}

// Update ゲームロジックの更新（Ebitengineが毎フレーム呼び出す）
func (g *Game) Update() error {
	// Escキーで終了
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		g.eng.Terminate()
		return ebiten.Termination
	}

	if err := g.eng.Update(); err != nil {
		if errors.Is(err, engine.ErrTerminated) {
			return ebiten.Termination
		}
		g.err = err
		return ebiten.Termination
	}

	x, y := ebiten.CursorPosition()
	g.updateCursor(x, y)

	// 左ボタンを離した時点でクリック完了
	if inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft) {
		g.eng.Click(x, y)
	}
	return nil
}

func (g *Game) updateCursor(x, y int) {
	shape := ebiten.CursorShapeDefault
	if exit, ok := g.eng.ExitAt(x, y); ok {
		shape = CursorShape(exit.Cursor)
	}
	if shape != g.cursor {
		g.cursor = shape
		ebiten.SetCursorShape(shape)
	}
}

// Draw 画面描画（Ebitengineが毎フレーム呼び出す）
func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(backgroundColor)
	scene := g.eng.Scene()

	if bg := g.pictures.Get(scene.Background); bg != nil {
		screen.DrawImage(bg, nil)
	}
	for _, b := range scene.Bitmaps {
		img := g.pictures.Get(b.Name)
		if img == nil {
			continue
		}
		op := &ebiten.DrawImageOptions{}
		op.GeoM.Translate(float64(b.At.X), float64(b.At.Y))
		screen.DrawImage(img, op)
	}

	if g.opts.ShowExits {
		for _, e := range scene.Exits {
			r := e.Area
			vector.StrokeRect(screen,
				float32(r.Min.X), float32(r.Min.Y),
				float32(r.Dx()), float32(r.Dy()),
				1, exitColor, false)
		}
	}

	g.drawStatus(screen, scene)
}

// StatusLine は画面下部に表示する文字列を返す
func StatusLine(s engine.Scene) string {
	items := "-"
	if len(s.Inventory) > 0 {
		items = strings.Join(s.Inventory, ", ")
	}
	return fmt.Sprintf("%s  mode %d  items: %s", s.Setting, s.Mode, items)
}

func (g *Game) drawStatus(screen *ebiten.Image, scene engine.Scene) {
	h := screen.Bounds().Dy()
	w := screen.Bounds().Dx()
	vector.FillRect(screen, 0, float32(h-statusHeight), float32(w), statusHeight, statusBgColor, false)

	op := &text.DrawOptions{}
	op.GeoM.Translate(4, float64(h-statusHeight+2))
	op.ColorScale.ScaleWithColor(textColor)
	text.Draw(screen, StatusLine(scene), defaultFace, op)
}

// Layout 画面サイズを返す
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.opts.Width, g.opts.Height
}

// Err returns the runtime error that stopped the game, if any.
func (g *Game) Err() error {
	return g.err
}

// Run GUIモードでウィンドウを実行
func Run(g *Game) error {
	scale := g.opts.Scale
	if scale <= 0 {
		scale = 1
	}
	ebiten.SetWindowSize(int(float64(g.opts.Width)*scale), int(float64(g.opts.Height)*scale))
	ebiten.SetWindowTitle(g.opts.Title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	if g.opts.TPS > 0 {
		ebiten.SetTPS(g.opts.TPS)
	}

	if err := ebiten.RunGame(g); err != nil {
		return fmt.Errorf("failed to run game: %w", err)
	}
	return g.err
}
