package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestHTTPGeoResolverSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/203.0.113.9" {
			t.Errorf("path = %q, want /203.0.113.9", r.URL.Path)
		}
		if fields := r.URL.Query().Get("fields"); fields != "status,country,city" {
			t.Errorf("fields = %q, want status,country,city", fields)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","country":"Germany","city":"Berlin"}`))
	}))
	defer srv.Close()

	resolver := NewHTTPGeoResolver(srv.URL, time.Second)
	loc, err := resolver.Resolve(context.Background(), "203.0.113.9")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if loc.City != "Berlin" || loc.Country != "Germany" {
		t.Fatalf("location = %+v, want Berlin/Germany", loc)
	}
}

func TestHTTPGeoResolverFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"fail"}`))
	}))
	defer srv.Close()

	resolver := NewHTTPGeoResolver(srv.URL, time.Second)
	if _, err := resolver.Resolve(context.Background(), "203.0.113.9"); err == nil {
		t.Fatal("Resolve on failed status = nil error")
	}
}

func TestHTTPGeoResolverSkipsUnroutableIPs(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.Write([]byte(`{"status":"success","country":"Nowhere","city":"Nowhere"}`))
	}))
	defer srv.Close()

	resolver := NewHTTPGeoResolver(srv.URL, time.Second)
	for _, ip := range []string{"", "not-an-ip", "127.0.0.1", "::1", "10.0.0.5", "192.168.1.20", "0.0.0.0", "fe80::1"} {
		loc, err := resolver.Resolve(context.Background(), ip)
		if err != nil {
			t.Errorf("Resolve(%q) = %v, want silent degradation", ip, err)
		}
		if loc != (Location{}) {
			t.Errorf("Resolve(%q) = %+v, want zero location", ip, loc)
		}
	}
	if n := atomic.LoadInt64(&calls); n != 0 {
		t.Fatalf("upstream called %d times for unroutable ips", n)
	}
}
