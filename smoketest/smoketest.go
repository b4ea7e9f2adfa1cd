package smoketest

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/hexsphere/chunks"
	"github.com/aukilabs/hexsphere/geometry"
	"github.com/aukilabs/hexsphere/mesher"
	"github.com/aukilabs/hexsphere/models"
	"github.com/segmentio/encoding/json"
	"golang.org/x/time/rate"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"

	ErrTypeNotConverged = "not_converged"
	ErrTypeHoles        = "holes"

	DefaultCells   = 2000
	DefaultTimeout = time.Second * 30

	// Requests above these limits are rejected.
	MaxCells   = 50000
	MaxTimeout = time.Minute * 2

	tickInterval = time.Millisecond * 5
)

// Request describes a smoke test. Zero values are replaced by defaults.
type Request struct {
	Cells   int           `json:"cells"`
	Timeout time.Duration `json:"timeout"`
}

func (r Request) validate() error {
	switch {
	case r.Cells < 0 || r.Cells > MaxCells:
		return errors.Newf("cells must be between 0 and %d", MaxCells)

	case r.Timeout < 0 || r.Timeout > MaxTimeout:
		return errors.Newf("timeout must be between 0 and %s", MaxTimeout)

	default:
		return nil
	}
}

// Result is the outcome of a smoke test.
type Result struct {
	Endpoint        string  `json:"endpoint"`
	Cells           int     `json:"cells"`
	Chunks          int     `json:"chunks"`
	Ticks           int     `json:"ticks"`
	LatencyMilliSec float64 `json:"latency_ms"`
	Status          string  `json:"status"`
	Error           string  `json:"error,omitempty"`
}

type Options struct {
	Endpoint   string
	NumWorkers int
	SendResult func(context.Context, Result) error

	// Limits how often smoke tests are started. Nil means no limit.
	Limiter *rate.Limiter
}

type testCtxKey string

var testCtxKeyValue testCtxKey = "test-context"

type testContext struct {
	context.Context
	Cancel func()
}

// HandleSmokeTest starts a smoke test and responds before it completes. The
// result is passed to SendResult.
func HandleSmokeTest(ctx context.Context, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			logs.Warn(errors.New("reading body failed").Wrap(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		var req Request
		if len(b) != 0 {
			if err := json.Unmarshal(b, &req); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
		}
		if err := req.validate(); err != nil {
			logs.WithTag("cells", req.Cells).
				WithTag("timeout", req.Timeout).
				Debug(err.Error())
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		if opts.Limiter != nil && !opts.Limiter.Allow() {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		go func() {
			defer func() {
				// Signals tests that the smoke test is over.
				if tctx := ctx.Value(testCtxKeyValue); tctx != nil {
					testCtx := tctx.(testContext)
					if testCtx.Cancel != nil {
						testCtx.Cancel()
					}
				}
			}()

			res, err := Run(ctx, opts, req)
			if err != nil {
				logs.Warn(err)
			}

			if err := opts.SendResult(ctx, res); err != nil {
				logs.WithTag("endpoint", opts.Endpoint).
					Warn(errors.New("sending smoke test result failed").Wrap(err))
			}
		}()

		w.WriteHeader(http.StatusOK)
	}
}

// Run streams a generated sphere from far away then from up close, and
// checks that the chunks converge without holes each time.
func Run(ctx context.Context, opts Options, req Request) (Result, error) {
	if req.Cells == 0 {
		req.Cells = DefaultCells
	}
	if req.Timeout == 0 {
		req.Timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	res := Result{
		Endpoint: opts.Endpoint,
		Cells:    req.Cells,
		Status:   StatusFailed,
	}
	start := time.Now()

	pool := &mesher.Pool{NumWorkers: opts.NumWorkers}
	defer pool.Close()

	m := &chunks.Manager{
		Body: chunks.NewBody("smoke-test", geometry.Fibonacci(req.Cells, 0.01), chunks.BodyOptions{}),
		Pool: pool,
	}
	defer m.Close()

	povs := []models.POV{
		models.DefaultPOV,
		{
			Position: geometry.NewVector3f(0, 0, 1.5),
			FOV:      models.DefaultPOV.FOV,
		},
	}

	for _, pov := range povs {
		ticks, err := converge(ctx, m, pov)
		res.Ticks += ticks
		if err != nil {
			res.Error = err.Error()
			return res, err
		}

		if err := checkCoverage(m); err != nil {
			res.Error = err.Error()
			return res, err
		}
	}

	res.Chunks = len(m.Chunks())
	res.LatencyMilliSec = float64(time.Since(start)) / float64(time.Millisecond)
	res.Status = StatusSuccess
	return res, nil
}

func converge(ctx context.Context, m *chunks.Manager, pov models.POV) (int, error) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	ticks := 0
	for {
		if err := ctx.Err(); err != nil {
			return ticks, errors.New("chunks did not converge").
				WithType(ErrTypeNotConverged).
				WithTag("ticks", ticks).
				WithTag("stats", m.Stats()).
				Wrap(err)
		}

		ticks++
		m.Tick(pov)
		if m.Converged() {
			return ticks, nil
		}

		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}
}

// checkCoverage verifies that the converged chunks display every cell
// exactly once.
func checkCoverage(m *chunks.Manager) error {
	seen := make(map[int]struct{}, m.Body.CellCount())
	for _, c := range m.Chunks() {
		for _, cell := range c.Result().Cells {
			if _, ok := seen[cell]; ok {
				return errors.New("cell displayed by more than one chunk").
					WithType(ErrTypeHoles).
					WithTag("cell", cell).
					WithTag("index", c.Index)
			}
			seen[cell] = struct{}{}
		}
	}

	if len(seen) != m.Body.CellCount() {
		return errors.New("cells are not displayed").
			WithType(ErrTypeHoles).
			WithTag("displayed", len(seen)).
			WithTag("cells", m.Body.CellCount())
	}
	return nil
}
