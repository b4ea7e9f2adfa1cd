package smoketest

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestSmokeTest(t *testing.T) {
	t.Run("smoke test success", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()

		ctx = context.WithValue(ctx, testCtxKeyValue, testContext{
			Context: ctx,
			Cancel:  cancel,
		})

		var result Result
		smokeTest := HandleSmokeTest(ctx, Options{
			Endpoint:   "http://localhexsphere",
			NumWorkers: 4,
			SendResult: func(_ context.Context, res Result) error {
				result = res
				return nil
			},
		})

		body, err := json.Marshal(Request{
			Cells:   500,
			Timeout: time.Second * 15,
		})
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "http://localhexsphere/smoke-test", bytes.NewBuffer(body))

		smokeTest.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		<-ctx.Done()

		require.Equal(t, StatusSuccess, result.Status)
		require.Equal(t, "http://localhexsphere", result.Endpoint)
		require.Equal(t, 500, result.Cells)
		require.NotZero(t, result.Chunks)
		require.NotZero(t, result.Ticks)
		require.Empty(t, result.Error)
	})

	t.Run("smoke test failed - timeout", func(t *testing.T) {
		res, err := Run(context.Background(), Options{NumWorkers: 1}, Request{
			Cells:   5000,
			Timeout: time.Nanosecond,
		})
		require.Error(t, err)
		require.True(t, errors.IsType(err, ErrTypeNotConverged))
		require.Equal(t, StatusFailed, res.Status)
		require.NotEmpty(t, res.Error)
	})

	t.Run("bad request", func(t *testing.T) {
		smokeTest := HandleSmokeTest(context.Background(), Options{
			SendResult: func(context.Context, Result) error {
				t.Error("smoke test should not run")
				return nil
			},
		})

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "http://localhexsphere/smoke-test", bytes.NewBufferString("{"))

		smokeTest.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("request over limits", func(t *testing.T) {
		smokeTest := HandleSmokeTest(context.Background(), Options{
			SendResult: func(context.Context, Result) error {
				t.Error("smoke test should not run")
				return nil
			},
		})

		bodies := []string{
			`{"cells":2000000000}`,
			`{"cells":-1}`,
			fmt.Sprintf(`{"timeout":%d}`, MaxTimeout+time.Second),
		}
		for _, body := range bodies {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/smoke-test", bytes.NewBufferString(body))

			smokeTest.ServeHTTP(rec, req)
			require.Equal(t, http.StatusBadRequest, rec.Code, body)
		}
	})

	t.Run("too many requests", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		smokeTest := HandleSmokeTest(ctx, Options{
			NumWorkers: 1,
			Limiter:    rate.NewLimiter(rate.Every(time.Hour), 1),
			SendResult: func(context.Context, Result) error {
				return nil
			},
		})

		body := `{"cells":10,"timeout":1000000000}`

		rec := httptest.NewRecorder()
		smokeTest.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/smoke-test", bytes.NewBufferString(body)))
		require.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		smokeTest.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/smoke-test", bytes.NewBufferString(body)))
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
	})
}
