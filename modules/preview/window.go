// Package preview shows presented frames in a desktop window.
//
// Closing the window quits the application.
package preview

import (
	"image"
	"log/slog"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"github.com/e7canasta/device-camera-monitor/modules/framepipeline"
)

// DefaultTitle is used when Config.Title is empty
const DefaultTitle = "Device Camera Monitor"

// Config contains configuration for the preview window
type Config struct {
	// Title of the window (default: DefaultTitle)
	Title string
	// InitialSize before the first frame fixes the geometry (default: 480x640)
	InitialSize framepipeline.Rect
	// OnClosed runs once after the window is closed
	OnClosed func()
}

// Window is a fyne window displaying one image. It implements
// framepipeline.Display.
type Window struct {
	app     fyne.App
	window  fyne.Window
	view    *canvas.Image
	waiting *widget.Label

	closeOnce sync.Once
	onClosed  func()
}

// New creates the preview window on a new fyne application
func New(cfg Config) *Window {
	return NewWithApp(app.New(), cfg)
}

// NewWithApp creates the preview window on an existing fyne application
func NewWithApp(a fyne.App, cfg Config) *Window {
	if cfg.Title == "" {
		cfg.Title = DefaultTitle
	}
	if cfg.InitialSize.Width <= 0 || cfg.InitialSize.Height <= 0 {
		cfg.InitialSize = framepipeline.Rect{Width: 480, Height: framepipeline.DefaultFixedHeight}
	}

	view := canvas.NewImageFromImage(nil)
	view.FillMode = canvas.ImageFillStretch
	view.ScaleMode = canvas.ImageScaleFastest

	waiting := widget.NewLabel("Waiting for device...")
	waiting.Alignment = fyne.TextAlignCenter

	w := &Window{
		app:      a,
		window:   a.NewWindow(cfg.Title),
		view:     view,
		waiting:  waiting,
		onClosed: cfg.OnClosed,
	}

	w.window.SetContent(container.NewStack(view, container.NewCenter(waiting)))
	w.window.Resize(toSize(cfg.InitialSize))
	w.window.SetMaster()
	w.window.SetOnClosed(w.closed)

	return w
}

// SetFrameSize resizes the view and window to r
func (w *Window) SetFrameSize(r framepipeline.Rect) {
	size := toSize(r)
	w.view.SetMinSize(size)
	w.window.Resize(size)

	slog.Info("preview: window resized", "size", r.String())
}

// SetImage replaces the displayed image
func (w *Window) SetImage(img image.Image) {
	if w.waiting.Visible() {
		w.waiting.Hide()
	}
	w.view.Image = img
	w.view.Refresh()
}

// Image returns the image currently displayed
func (w *Window) Image() image.Image {
	return w.view.Image
}

// Size returns the current window content size
func (w *Window) Size() fyne.Size {
	return w.window.Canvas().Size()
}

// ShowAndRun shows the window and runs the fyne event loop on the calling
// goroutine until the application quits. Must be called from main.
func (w *Window) ShowAndRun() {
	w.window.ShowAndRun()
}

// Close closes the window, which quits the application
func (w *Window) Close() {
	w.window.Close()
}

func (w *Window) closed() {
	w.closeOnce.Do(func() {
		slog.Info("preview: window closed")
		if w.onClosed != nil {
			w.onClosed()
		}
	})
}

func toSize(r framepipeline.Rect) fyne.Size {
	return fyne.NewSize(float32(r.Width), float32(r.Height))
}
