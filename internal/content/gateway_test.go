package content

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"didhub/internal/platform/config"
	dErrors "didhub/pkg/domain-errors"
)

type GatewaySuite struct {
	suite.Suite
	ctx    context.Context
	logger *slog.Logger
}

func (s *GatewaySuite) SetupTest() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGatewaySuite(t *testing.T) {
	suite.Run(t, new(GatewaySuite))
}

func (s *GatewaySuite) newClient(baseURL string) *GatewayClient {
	client, err := NewGatewayClient(config.Gateway{
		BaseURL:        baseURL,
		JWT:            "test-credential",
		RequestTimeout: 2 * time.Second,
		MaxRetries:     3,
	}, s.logger)
	s.Require().NoError(err)
	return client
}

func (s *GatewaySuite) TestPut() {
	s.Run("uploads with credential and label, confirms the address", func() {
		payload := []byte(`{"doc":true}`)
		want, err := ComputeAddress(payload)
		s.Require().NoError(err)

		var gotAuth, gotLabel string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			gotLabel = r.Header.Get("X-Object-Label")
			_ = json.NewEncoder(w).Encode(map[string]string{"address": r.Header.Get("X-Content-Address")})
		}))
		defer srv.Close()

		addr, err := s.newClient(srv.URL).Put(s.ctx, payload, WithLabel("diddoc-test.json"))
		s.Require().NoError(err)
		s.Equal(want, addr)
		s.Equal("Bearer test-credential", gotAuth)
		s.Equal("diddoc-test.json", gotLabel)
	})

	s.Run("rejects a gateway that disagrees on the address", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]string{"address": "bafybadaddress"})
		}))
		defer srv.Close()

		_, err := s.newClient(srv.URL).Put(s.ctx, []byte("payload"))
		s.Require().Error(err)
		s.Contains(err.Error(), "disagrees")
	})

	s.Run("retries transient errors until success", func() {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"address": r.Header.Get("X-Content-Address")})
		}))
		defer srv.Close()

		_, err := s.newClient(srv.URL).Put(s.ctx, []byte("eventually"))
		s.Require().NoError(err)
		s.Equal(int32(3), calls.Load())
	})

	s.Run("does not retry definitive rejections", func() {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusForbidden)
		}))
		defer srv.Close()

		_, err := s.newClient(srv.URL).Put(s.ctx, []byte("denied"))
		s.Require().Error(err)
		s.Equal(int32(1), calls.Load())
	})
}

func (s *GatewaySuite) TestGet() {
	s.Run("fetches and verifies the payload", func() {
		payload := []byte("stored bytes")
		addr, err := ComputeAddress(payload)
		s.Require().NoError(err)

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write(payload)
		}))
		defer srv.Close()

		got, err := s.newClient(srv.URL).Get(s.ctx, addr)
		s.Require().NoError(err)
		s.Equal(payload, got)
	})

	s.Run("rejects a payload that fails verification", func() {
		addr, err := ComputeAddress([]byte("expected"))
		s.Require().NoError(err)

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("swapped"))
		}))
		defer srv.Close()

		_, err = s.newClient(srv.URL).Get(s.ctx, addr)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeDocumentUnavailable))
	})

	s.Run("maps 404 to not found", func() {
		addr, err := ComputeAddress([]byte("missing"))
		s.Require().NoError(err)

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		_, err = s.newClient(srv.URL).Get(s.ctx, addr)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *GatewaySuite) TestUnpin() {
	s.Run("issues a delete for the pin", func() {
		var gotMethod, gotPath string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod, gotPath = r.Method, r.URL.Path
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		addr, err := ComputeAddress([]byte("pinned"))
		s.Require().NoError(err)
		s.Require().NoError(s.newClient(srv.URL).Unpin(s.ctx, addr))
		s.Equal(http.MethodDelete, gotMethod)
		s.Equal("/pins/"+addr.String(), gotPath)
	})
}
