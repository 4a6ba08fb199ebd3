// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package integration_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/tasktrack/internal/auth"
	"github.com/holomush/tasktrack/internal/httpapi"
	"github.com/holomush/tasktrack/internal/task"
)

type response struct {
	status int
	body   []byte
}

func call(method, path string, body any, token string) response {
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(env.ctx, method, env.server.URL+path, r)
	Expect(err).NotTo(HaveOccurred())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := env.server.Client().Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return response{status: resp.StatusCode, body: raw}
}

func decode[T any](resp response) T {
	var v T
	Expect(json.Unmarshal(resp.body, &v)).To(Succeed(), string(resp.body))
	return v
}

func errorCode(resp response) string {
	return decode[httpapi.ErrorBody](resp).Error.Code
}

func register(username, email, password string) auth.Session {
	resp := call(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"username": username, "email": email, "password": password,
	}, "")
	Expect(resp.status).To(Equal(http.StatusCreated), string(resp.body))
	return decode[auth.Session](resp)
}

func login(username, password string) response {
	return call(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"username": username, "password": password,
	}, "")
}

func lastResetToken() string {
	msg, ok := env.notifier.Last()
	Expect(ok).To(BeTrue())
	_, rest, found := strings.Cut(msg.Body, auth.ResetPathPrefix)
	Expect(found).To(BeTrue())
	token, _, _ := strings.Cut(rest, "\n")
	return token
}

func resetColumns(username string) (token, expiry any) {
	row := env.pool.QueryRow(env.ctx, "SELECT reset_token, token_expiry FROM users WHERE username = $1", username)
	Expect(row.Scan(&token, &expiry)).To(Succeed())
	return token, expiry
}

var _ = Describe("Password lifecycle", func() {
	It("registers, logs in, resets the password and rejects token reuse", func() {
		session := register("alice", "alice@x.com", "secret1")
		Expect(session.Token).NotTo(BeEmpty())

		Expect(login("alice", "secret1").status).To(Equal(http.StatusOK))
		Expect(errorCode(login("alice", "wrong"))).To(Equal(auth.CodeInvalidCredentials))

		resp := call(http.MethodPost, "/api/v1/auth/forgot-password", map[string]string{"email": "alice@x.com"}, "")
		Expect(resp.status).To(Equal(http.StatusOK))
		stored, expiry := resetColumns("alice")
		Expect(stored).NotTo(BeNil())
		Expect(expiry).NotTo(BeNil())

		token := lastResetToken()
		Expect(stored).NotTo(Equal(token), "only the digest is persisted")

		resp = call(http.MethodPost, "/api/v1/auth/reset-password/"+token, map[string]string{"password": "newpass1"}, "")
		Expect(resp.status).To(Equal(http.StatusOK), string(resp.body))
		Expect(decode[httpapi.MessageResponse](resp).Message).To(Equal(httpapi.ResetSuccessMessage))

		stored, expiry = resetColumns("alice")
		Expect(stored).To(BeNil())
		Expect(expiry).To(BeNil())

		Expect(login("alice", "secret1").status).To(Equal(http.StatusUnauthorized))
		Expect(login("alice", "newpass1").status).To(Equal(http.StatusOK))

		resp = call(http.MethodPost, "/api/v1/auth/reset-password/"+token, map[string]string{"password": "another1"}, "")
		Expect(resp.status).To(Equal(http.StatusBadRequest))
		Expect(errorCode(resp)).To(Equal(auth.CodeResetTokenInvalid))
	})

	It("rejects an expired reset token and clears it", func() {
		register("bob", "bob@x.com", "secret1")
		resp := call(http.MethodPost, "/api/v1/auth/forgot-password", map[string]string{"email": "bob@x.com"}, "")
		Expect(resp.status).To(Equal(http.StatusOK))

		_, err := env.pool.Exec(env.ctx,
			"UPDATE users SET token_expiry = NOW() - INTERVAL '1 minute' WHERE username = 'bob'")
		Expect(err).NotTo(HaveOccurred())

		resp = call(http.MethodPost, "/api/v1/auth/reset-password/"+lastResetToken(), map[string]string{"password": "newpass1"}, "")
		Expect(resp.status).To(Equal(http.StatusBadRequest))
		Expect(errorCode(resp)).To(Equal(auth.CodeResetTokenInvalid))
		Expect(login("bob", "secret1").status).To(Equal(http.StatusOK))

		Eventually(func() any {
			token, _ := resetColumns("bob")
			return token
		}).Should(BeNil())
	})

	It("answers forgot-password for unknown emails without writing anything", func() {
		before := len(env.notifier.Messages())
		resp := call(http.MethodPost, "/api/v1/auth/forgot-password", map[string]string{"email": "ghost@x.com"}, "")
		Expect(resp.status).To(Equal(http.StatusOK))
		Expect(env.notifier.Messages()).To(HaveLen(before))
	})
})

var _ = Describe("Registration uniqueness", func() {
	It("reports the conflicting field", func() {
		register("carol", "carol@x.com", "secret1")

		resp := call(http.MethodPost, "/api/v1/auth/register", map[string]string{
			"username": "carol", "email": "other@x.com", "password": "secret1",
		}, "")
		Expect(resp.status).To(Equal(http.StatusConflict))
		Expect(errorCode(resp)).To(Equal(auth.CodeUsernameTaken))

		resp = call(http.MethodPost, "/api/v1/auth/register", map[string]string{
			"username": "carol2", "email": "CAROL@x.com", "password": "secret1",
		}, "")
		Expect(resp.status).To(Equal(http.StatusConflict))
		Expect(errorCode(resp)).To(Equal(auth.CodeEmailTaken))
	})

	It("admits exactly one of several concurrent registrations", func() {
		const attempts = 8
		statuses := make([]int, attempts)
		var wg sync.WaitGroup
		for i := range attempts {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				resp := call(http.MethodPost, "/api/v1/auth/register", map[string]string{
					"username": "dave", "email": fmt.Sprintf("dave%d@x.com", i), "password": "secret1",
				}, "")
				statuses[i] = resp.status
			}()
		}
		wg.Wait()

		created := 0
		for _, status := range statuses {
			if status == http.StatusCreated {
				created++
				continue
			}
			Expect(status).To(Equal(http.StatusConflict))
		}
		Expect(created).To(Equal(1))

		var count int
		Expect(env.pool.QueryRow(env.ctx, "SELECT COUNT(*) FROM users WHERE username = 'dave'").Scan(&count)).To(Succeed())
		Expect(count).To(Equal(1))
	})
})

var _ = Describe("Tasks", func() {
	var alice, eve auth.Session

	BeforeEach(func() {
		alice = register("alice", "alice@x.com", "secret1")
		eve = register("eve", "eve@x.com", "secret1")
	})

	It("supports the full CRUD cycle for the owner", func() {
		resp := call(http.MethodPost, "/api/v1/tasks", map[string]string{"title": "buy milk"}, alice.Token)
		Expect(resp.status).To(Equal(http.StatusCreated), string(resp.body))
		created := decode[task.Task](resp)
		path := "/api/v1/tasks/" + created.ID.String()

		resp = call(http.MethodPatch, path, map[string]any{"done": true}, alice.Token)
		Expect(resp.status).To(Equal(http.StatusOK), string(resp.body))
		Expect(decode[task.Task](resp).Done).To(BeTrue())

		resp = call(http.MethodGet, "/api/v1/tasks", nil, alice.Token)
		Expect(resp.status).To(Equal(http.StatusOK))
		Expect(decode[httpapi.TaskList](resp).Tasks).To(HaveLen(1))

		Expect(call(http.MethodDelete, path, nil, alice.Token).status).To(Equal(http.StatusNoContent))
		Expect(call(http.MethodGet, path, nil, alice.Token).status).To(Equal(http.StatusNotFound))
	})

	It("hides tasks from other users", func() {
		resp := call(http.MethodPost, "/api/v1/tasks", map[string]string{"title": "private"}, alice.Token)
		Expect(resp.status).To(Equal(http.StatusCreated))
		path := "/api/v1/tasks/" + decode[task.Task](resp).ID.String()

		Expect(call(http.MethodGet, path, nil, eve.Token).status).To(Equal(http.StatusNotFound))
		Expect(call(http.MethodDelete, path, nil, eve.Token).status).To(Equal(http.StatusNotFound))

		resp = call(http.MethodGet, "/api/v1/tasks", nil, eve.Token)
		Expect(decode[httpapi.TaskList](resp).Tasks).To(BeEmpty())
	})

	It("removes a user's tasks with the user", func() {
		resp := call(http.MethodPost, "/api/v1/tasks", map[string]string{"title": "doomed"}, alice.Token)
		Expect(resp.status).To(Equal(http.StatusCreated))

		_, err := env.pool.Exec(env.ctx, "DELETE FROM users WHERE username = 'alice'")
		Expect(err).NotTo(HaveOccurred())

		var count int
		Expect(env.pool.QueryRow(env.ctx, "SELECT COUNT(*) FROM tasks").Scan(&count)).To(Succeed())
		Expect(count).To(BeZero())
	})
})
