// internal/terminal/terminal.go
package terminal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"posnexus/internal/cart"
	"posnexus/internal/catalog"
	"posnexus/internal/checkout"
	"posnexus/internal/notify"
	"posnexus/internal/scanner"
)

var ErrCheckoutInProgress = checkout.ErrCheckoutInProgress

// AddResult describes a committed add.
type AddResult struct {
	Product   catalog.Product   `json:"product"`
	Match     catalog.MatchKind `json:"-"`
	Quantity  int               `json:"quantity"`
	Remaining int               `json:"remaining"`
}

// CartView is a read-only copy of the cart.
type CartView struct {
	Lines            []cart.Line     `json:"lines"`
	Total            decimal.Decimal `json:"total"`
	CheckoutInFlight bool            `json:"checkout_in_flight"`
}

// Terminal is one cashier session. Every cart mutation runs under mu; the
// checkout network round trip does not, and inFlight refuses mutations
// until it finishes.
type Terminal struct {
	mu       sync.Mutex
	snapshot *catalog.Snapshot
	cart     *cart.Cart
	inFlight bool

	source     catalog.Source
	reconciler *checkout.Reconciler
	board      *notify.Board
	logger     *zap.Logger
	now        func() time.Time

	keys     *scanner.Disambiguator
	listener *scanner.Listener
	mountMu  sync.Mutex
	release  func()

	camera *scanner.CameraBridge
	pusher *scanner.PushDecoder
}

type settings struct {
	burstGap      time.Duration
	minCodeLength int
	decoder       scanner.Decoder
}

type Option func(*settings)

func WithBurstGap(d time.Duration) Option {
	return func(s *settings) { s.burstGap = d }
}

func WithMinCodeLength(n int) Option {
	return func(s *settings) { s.minCodeLength = n }
}

// WithDecoder replaces the default push decoder used by the camera bridge.
func WithDecoder(d scanner.Decoder) Option {
	return func(s *settings) { s.decoder = d }
}

func New(source catalog.Source, reconciler *checkout.Reconciler, board *notify.Board, listener *scanner.Listener, logger *zap.Logger, opts ...Option) *Terminal {
	s := settings{
		burstGap:      scanner.DefaultBurstGap,
		minCodeLength: scanner.DefaultMinCodeLength,
	}
	for _, opt := range opts {
		opt(&s)
	}

	t := &Terminal{
		snapshot:   catalog.NewSnapshot(nil, time.Time{}),
		cart:       cart.New(),
		source:     source,
		reconciler: reconciler,
		board:      board,
		listener:   listener,
		logger:     logger,
		now:        time.Now,
	}
	t.keys = scanner.NewDisambiguator(t,
		scanner.WithBurstGap(s.burstGap),
		scanner.WithMinCodeLength(s.minCodeLength),
	)

	if s.decoder == nil {
		t.pusher = scanner.NewPushDecoder(16)
		s.decoder = t.pusher
	}
	t.camera = scanner.NewCameraBridge(s.decoder, t, logger)
	return t
}

// ReloadCatalog replaces the product snapshot. The fetch runs outside the
// session lock.
func (t *Terminal) ReloadCatalog(ctx context.Context) (int, error) {
	snap, err := catalog.Load(ctx, t.source, t.now())
	if err != nil {
		t.board.Notify(notify.LevelError, "Could not load the catalog")
		return 0, err
	}

	t.mu.Lock()
	t.snapshot = snap
	t.mu.Unlock()

	t.logger.Info("catalog loaded", zap.Int("products", snap.Len()))
	t.board.Notify(notify.LevelInfo, fmt.Sprintf(msgCatalogReloaded, snap.Len()))
	return snap.Len(), nil
}

// HandleScan is the sink for both intake paths.
func (t *Terminal) HandleScan(ev scanner.ScanEvent) {
	res, err := t.Scan(ev.Code)
	if err != nil {
		t.logger.Debug("scan rejected",
			zap.String("code", ev.Code),
			zap.String("source", string(ev.Source)),
			zap.Error(err),
		)
		return
	}
	t.logger.Debug("scan committed",
		zap.String("code", ev.Code),
		zap.String("source", string(ev.Source)),
		zap.String("match", res.Match.String()),
		zap.Int("remaining", res.Remaining),
	)
}

// Scan resolves a code against the snapshot and adds one unit if stock
// allows.
func (t *Terminal) Scan(code string) (AddResult, error) {
	code = strings.TrimSpace(code)

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.refuseInFlightLocked(); err != nil {
		return AddResult{}, err
	}

	p, kind, ok := t.snapshot.Resolve(code)
	if !ok {
		t.board.Notify(notify.LevelWarning, msgNotFound(code))
		return AddResult{}, fmt.Errorf("%w: %s", ErrProductNotFound, code)
	}
	return t.addLocked(p, kind)
}

// SelectProduct adds a product picked from the catalog list.
func (t *Terminal) SelectProduct(id uuid.UUID) (AddResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.refuseInFlightLocked(); err != nil {
		return AddResult{}, err
	}

	p, ok := t.snapshot.Get(id)
	if !ok {
		t.board.Notify(notify.LevelWarning, msgNotFound(id.String()))
		return AddResult{}, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	return t.addLocked(p, catalog.MatchExact)
}

// IncreaseQuantity adds one unit to an existing line under the stock check.
func (t *Terminal) IncreaseQuantity(id uuid.UUID) (AddResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.refuseInFlightLocked(); err != nil {
		return AddResult{}, err
	}
	if t.cart.Quantity(id) == 0 {
		return AddResult{}, fmt.Errorf("%w: %s", ErrNotInCart, id)
	}

	p, ok := t.snapshot.Get(id)
	if !ok {
		t.board.Notify(notify.LevelWarning, msgNotFound(id.String()))
		return AddResult{}, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	return t.addLocked(p, catalog.MatchExact)
}

// UpdateQuantity sets a line's quantity. Raising it is stock checked;
// n <= 0 removes the line.
func (t *Terminal) UpdateQuantity(id uuid.UUID, n int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.refuseInFlightLocked(); err != nil {
		return err
	}

	current := t.cart.Quantity(id)
	if current == 0 {
		return fmt.Errorf("%w: %s", ErrNotInCart, id)
	}

	if n > current {
		p, ok := t.snapshot.Get(id)
		if !ok {
			t.board.Notify(notify.LevelWarning, msgNotFound(id.String()))
			return fmt.Errorf("%w: %s", ErrProductNotFound, id)
		}
		if _, err := Admit(p, current, n-current); err != nil {
			t.board.Notify(notify.LevelWarning, msgExhausted(p.Name))
			return err
		}
	}

	t.cart.UpdateQuantity(id, n)
	return nil
}

// RemoveItem deletes a line; removing an absent product is a no-op.
func (t *Terminal) RemoveItem(id uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.refuseInFlightLocked(); err != nil {
		return err
	}
	t.cart.RemoveItem(id)
	return nil
}

func (t *Terminal) ClearCart() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.refuseInFlightLocked(); err != nil {
		return err
	}
	t.cart.Clear()
	return nil
}

func (t *Terminal) Cart() CartView {
	t.mu.Lock()
	defer t.mu.Unlock()
	return CartView{
		Lines:            t.cart.Lines(),
		Total:            t.cart.Total(),
		CheckoutInFlight: t.inFlight,
	}
}

// Products returns the current catalog snapshot.
func (t *Terminal) Products() []catalog.Product {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot.Products()
}

// Checkout submits the cart. The cart is cleared when the sale was either
// committed or queued, and kept when the queue write failed.
func (t *Terminal) Checkout(ctx context.Context, paymentMethod string) (checkout.Outcome, error) {
	t.mu.Lock()
	if err := t.refuseInFlightLocked(); err != nil {
		t.mu.Unlock()
		return checkout.Outcome{State: checkout.StateSubmitting}, err
	}
	if t.cart.IsEmpty() {
		t.mu.Unlock()
		t.board.Notify(notify.LevelWarning, msgEmptyCart)
		return checkout.Outcome{State: checkout.StateIdle}, checkout.ErrEmptyCart
	}
	lines := t.cart.Lines()
	t.inFlight = true
	t.mu.Unlock()

	outcome, err := t.reconciler.Checkout(ctx, lines, paymentMethod)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.inFlight = false

	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrOfflineQueueWrite):
			t.board.Notify(notify.LevelError, checkout.MsgQueueFailed)
		case errors.Is(err, checkout.ErrCheckoutInProgress):
			t.board.Notify(notify.LevelWarning, msgCheckoutBusy)
		default:
			t.board.Notify(notify.LevelError, err.Error())
		}
		return outcome, err
	}

	switch {
	case outcome.State == checkout.StateCommitted:
		t.board.Notify(notify.LevelSuccess, outcome.Message)
	case outcome.Degraded:
		t.board.Notify(notify.LevelWarning, outcome.Message)
	default:
		t.board.Notify(notify.LevelInfo, outcome.Message)
	}
	t.cart.Clear()
	return outcome, nil
}

// Mount attaches this session's keyboard disambiguator to the shared
// listener until Unmount or ctx is done.
func (t *Terminal) Mount(ctx context.Context) error {
	t.mountMu.Lock()
	defer t.mountMu.Unlock()

	release, err := t.listener.Acquire(ctx, t.keys)
	if err != nil {
		return err
	}
	t.release = release
	return nil
}

func (t *Terminal) Unmount() {
	t.mountMu.Lock()
	defer t.mountMu.Unlock()

	if t.release != nil {
		t.release()
		t.release = nil
	}
}

// HandleKey routes a key event through the shared listener. The session
// lock is not held here: a completed scan re-enters through HandleScan.
func (t *Terminal) HandleKey(ev scanner.KeyEvent) (bool, error) {
	if ev.At.IsZero() {
		ev.At = t.now()
	}
	return t.listener.Dispatch(ev)
}

func (t *Terminal) OpenCamera(ctx context.Context) error {
	if err := t.camera.Open(ctx); err != nil {
		t.logger.Warn("camera open failed", zap.Error(err))
		t.board.Notify(notify.LevelError, msgCameraFailed)
		return err
	}
	return nil
}

// CloseCamera must not be called with mu held; it waits for the decode
// loop, which may be waiting on mu.
func (t *Terminal) CloseCamera() error {
	return t.camera.Close()
}

func (t *Terminal) CameraOpen() bool {
	return t.camera.IsOpen()
}

// PushCameraCode feeds a code decoded on the client into the camera path.
func (t *Terminal) PushCameraCode(code string) error {
	if t.pusher == nil {
		return fmt.Errorf("%w: decoder does not accept pushed codes", scanner.ErrCameraUnavailable)
	}
	return t.pusher.Push(code)
}

func (t *Terminal) Notifications() []notify.Notification {
	return t.board.Active()
}

func (t *Terminal) DismissNotification(id uuid.UUID) bool {
	return t.board.Dismiss(id)
}

// Close releases the keyboard listener and the camera.
func (t *Terminal) Close() error {
	t.Unmount()
	return t.CloseCamera()
}

func (t *Terminal) refuseInFlightLocked() error {
	if t.inFlight {
		t.board.Notify(notify.LevelWarning, msgCheckoutBusy)
		return ErrCheckoutInProgress
	}
	return nil
}

func (t *Terminal) addLocked(p catalog.Product, kind catalog.MatchKind) (AddResult, error) {
	adm, err := Admit(p, t.cart.Quantity(p.ID), 1)
	if err != nil {
		t.board.Notify(notify.LevelWarning, msgExhausted(p.Name))
		return AddResult{}, err
	}

	t.cart.AddItem(p)
	t.board.Notify(notify.LevelSuccess, msgAdded(p.Name, adm.Remaining))
	return AddResult{
		Product:   p,
		Match:     kind,
		Quantity:  t.cart.Quantity(p.ID),
		Remaining: adm.Remaining,
	}, nil
}
