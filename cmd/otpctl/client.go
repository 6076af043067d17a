package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// apiError is a non-2xx answer from the server.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("server error: code=%d msg=%s", e.Status, e.Message)
}

// apiClient talks to the device endpoints.
type apiClient struct {
	base  string
	token string
	http  *http.Client
}

func newHTTPClient(caPath string, insecure bool) (*http.Client, error) {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	switch {
	case insecure:
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // -insecure is opt-in for dev servers
	case caPath != "":
		pem, err := os.ReadFile(caPath)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.New("bad CA cert")
		}
		tr.TLSClientConfig = &tls.Config{RootCAs: pool}
	}
	return &http.Client{Transport: tr, Timeout: 30 * time.Second}, nil
}

func newAPIClient(base, token string, hc *http.Client) *apiClient {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &apiClient{base: strings.TrimRight(base, "/"), token: token, http: hc}
}

func (c *apiClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &apiError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type loginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      struct {
		ID         string  `json:"id"`
		Email      string  `json:"email"`
		MACAddress *string `json:"macAddress"`
	} `json:"user"`
}

// login calls /api/auth/login, or /api/auth/register-device when register is set.
func (c *apiClient) login(ctx context.Context, email, password, mac string, register bool) (loginResult, error) {
	path := "/api/auth/login"
	if register {
		path = "/api/auth/register-device"
	}
	var out loginResult
	err := c.do(ctx, http.MethodPost, path, map[string]string{
		"email": email, "password": password, "macAddress": mac,
	}, &out)
	return out, err
}

type country struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Code         string `json:"code"`
	NumberLength int    `json:"numberLength"`
}

func (c *apiClient) countries(ctx context.Context) ([]country, error) {
	var out []country
	if err := c.do(ctx, http.MethodGet, "/api/countries", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type script struct {
	ID         string    `json:"id"`
	AppName    string    `json:"appName"`
	FileName   string    `json:"fileName"`
	FileSize   int64     `json:"fileSize"`
	UploadedAt time.Time `json:"uploadedAt"`
}

func (c *apiClient) scripts(ctx context.Context) ([]script, error) {
	var out []script
	if err := c.do(ctx, http.MethodGet, "/api/scripts", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type download struct {
	Script     string `json:"script"`
	TaskID     string `json:"taskId"`
	ValidCount int    `json:"validCount"`
}

func (c *apiClient) download(ctx context.Context, scriptID, countryID string, numbers []string) (download, error) {
	var out download
	err := c.do(ctx, http.MethodPost, "/api/scripts/download", map[string]any{
		"scriptId": scriptID, "countryId": countryID, "phoneNumbers": numbers,
	}, &out)
	return out, err
}

func (c *apiClient) report(ctx context.Context, taskID, status string, otp int, errMsg string) error {
	in := map[string]any{"taskId": taskID, "status": status, "otpProcessed": otp}
	if errMsg != "" {
		in["errorMessage"] = errMsg
	}
	return c.do(ctx, http.MethodPost, "/api/tasks/report-status", in, nil)
}
