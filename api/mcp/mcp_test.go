package mcp_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/missioncontrol/api/mcp"
	"github.com/papercomputeco/missioncontrol/pkg/actor"
	mclogger "github.com/papercomputeco/missioncontrol/pkg/logger"
	"github.com/papercomputeco/missioncontrol/pkg/storage/inmemory"
)

var _ = Describe("MCP Server", func() {
	var (
		driver   *inmemory.Driver
		resolver *actor.Resolver
	)

	BeforeEach(func() {
		driver = inmemory.NewDriver()

		var err error
		resolver, err = actor.NewResolver(actor.ResolverConfig{
			JWTSecret: []byte("test-secret"),
			Agents:    driver,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewServer", func() {
		It("returns an error when storage driver is nil", func() {
			_, err := mcp.NewServer(mcp.Config{Resolver: resolver, Logger: mclogger.Nop()})
			Expect(err).To(MatchError(ContainSubstring("storage driver is required")))
		})

		It("returns an error when resolver is nil", func() {
			_, err := mcp.NewServer(mcp.Config{Driver: driver, Logger: mclogger.Nop()})
			Expect(err).To(MatchError(ContainSubstring("actor resolver is required")))
		})

		It("returns an error when logger is nil", func() {
			_, err := mcp.NewServer(mcp.Config{Driver: driver, Resolver: resolver})
			Expect(err).To(MatchError(ContainSubstring("logger is required")))
		})

		It("creates a server with a handler", func() {
			server, err := mcp.NewServer(mcp.Config{Driver: driver, Resolver: resolver, Logger: mclogger.Nop()})
			Expect(err).NotTo(HaveOccurred())
			Expect(server.Handler()).NotTo(BeNil())
		})
	})

	Describe("Handler", func() {
		var server *mcp.Server

		BeforeEach(func() {
			var err error
			server, err = mcp.NewServer(mcp.Config{Driver: driver, Resolver: resolver, Logger: mclogger.Nop()})
			Expect(err).NotTo(HaveOccurred())
		})

		post := func(headers map[string]string) *httptest.ResponseRecorder {
			body := `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`
			req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept", "application/json, text/event-stream")
			for k, v := range headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			server.Handler().ServeHTTP(rec, req)
			return rec
		}

		It("rejects requests without credentials", func() {
			rec := post(nil)
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
			Expect(rec.Body.String()).To(MatchJSON(`{"error":"unauthorized"}`))
		})

		It("rejects unknown agent tokens", func() {
			rec := post(map[string]string{actor.AgentTokenHeader: "mca_unknown"})
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})

		It("passes authenticated requests to the MCP handler", func() {
			token, err := actor.IssueUserToken([]byte("test-secret"), "", "user-1", "org-1", time.Hour)
			Expect(err).NotTo(HaveOccurred())

			rec := post(map[string]string{actor.AuthorizationHeader: "Bearer " + token})
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring("recall_board_memory"))
		})
	})
})
