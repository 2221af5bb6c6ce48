package utils

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"time"

	"github.com/mpapenbr/docflow-session-go/log"
)

const (
	defaultNatsPort  = "4222"
	defaultRedisPort = "6379"
)

func WaitForTCP(ctx context.Context, addr string, timeout time.Duration) error {
	timeoutReached := time.Now().Add(timeout)
	start := time.Now()
	log.Debug("wait for tcp connection",
		log.String("addr", addr),
		log.String("timeout", timeout.String()))
	d := net.Dialer{Timeout: time.Second}
	for time.Now().Before(timeoutReached) {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			conn.Close()

			log.Debug("tcp connection successful",
				log.String("addr", addr),
				log.String("duration", time.Since(start).String()))
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	return fmt.Errorf("%s could not be reached after %v", addr, timeout)
}

// WaitForHTTPResponse waits until url answers with any status.
func WaitForHTTPResponse(ctx context.Context, url string, timeout time.Duration) error {
	timeoutReached := time.Now().Add(timeout)
	start := time.Now()
	log.Debug("wait for http request",
		log.String("url", url),
		log.String("timeout", timeout.String()))
	cli := &http.Client{Timeout: 2 * time.Second}
	for time.Now().Before(timeoutReached) {
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
		resp, err := cli.Do(req)
		if err == nil {
			resp.Body.Close()
			log.Debug("http request successful",
				log.String("url", url),
				log.Int("status", resp.StatusCode),
				log.String("duration", time.Since(start).String()))
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return fmt.Errorf("%s could not be reached after %v", url, timeout)
}

// ExtractFromNatsURL returns host:port of the first server in a NATS url.
func ExtractFromNatsURL(url string) string {
	param := resolveRegex(
		"^((?P<proto>nats|tls|ws|wss)://)?(.*@)?(?P<host>[^:/,]+)(:(?P<port>\\d+))?", url)
	if len(param) == 0 || param["host"] == "" {
		return ""
	}
	if port := param["port"]; port != "" {
		return net.JoinHostPort(param["host"], port)
	}
	return net.JoinHostPort(param["host"], defaultNatsPort)
}

// ExtractFromRedisAddr accepts host:port as well as redis:// and rediss:// urls.
func ExtractFromRedisAddr(addr string) string {
	param := resolveRegex(
		"^((?P<proto>redis|rediss)://)?(.*@)?(?P<host>[^:/]+)(:(?P<port>\\d+))?", addr)
	if len(param) == 0 || param["host"] == "" {
		return ""
	}
	if port := param["port"]; port != "" {
		return net.JoinHostPort(param["host"], port)
	}
	return net.JoinHostPort(param["host"], defaultRedisPort)
}

func resolveRegex(regEx, url string) (paramsMap map[string]string) {
	compRegEx := regexp.MustCompile(regEx)
	match := compRegEx.FindStringSubmatch(url)

	paramsMap = make(map[string]string)
	for i, name := range compRegEx.SubexpNames() {
		if i > 0 && i < len(match) {
			paramsMap[name] = match[i]
		}
	}
	return paramsMap
}
