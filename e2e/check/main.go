// Command check asks a running runtime-authz instance to authorize one
// request through the forward-auth endpoint and prints the decision.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/pflag"

	httpclient "github.com/astro-web3/runtime-authz/pkg/http"
)

func main() {
	addr := pflag.String("addr", "http://localhost:8123", "runtime-authz base URL")
	token := pflag.StringP("token", "t", "", "bearer token (API key or JWT)")
	method := pflag.StringP("method", "X", "GET", "method of the request to authorize")
	path := pflag.StringP("path", "p", "/v1/jobs", "path of the request to authorize")
	tenant := pflag.String("tenant", "", "tenant id sent as X-Tenant-ID")
	host := pflag.String("host", "", "host of the request to authorize")
	pflag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	opts := []httpclient.RequestOption{
		httpclient.WithAuthToken(*token),
		httpclient.WithHeader("X-Forwarded-Method", strings.ToUpper(*method)),
		httpclient.WithHeader("X-Forwarded-Uri", *path),
		httpclient.WithHeader("X-Forwarded-Host", *host),
		httpclient.WithHeader("X-Tenant-ID", *tenant),
	}

	resp, err := httpclient.Get(ctx, strings.TrimSuffix(*addr, "/")+"/authz/check", opts...)
	if err != nil {
		log.Fatalf("Request failed: %v", err)
	}

	if resp.IsError() {
		fmt.Printf("❌ %s %s DENIED\n", strings.ToUpper(*method), *path)
		fmt.Printf("Status: %d\n", resp.StatusCode())
		fmt.Printf("Body: %s\n", resp.String())
		os.Exit(1)
	}

	fmt.Printf("✅ %s %s %s\n", strings.ToUpper(*method), *path, strings.ToUpper(resp.Header().Get("X-Authz-Decision")))
	fmt.Println("\nIdentity headers:")

	keys := make([]string, 0, len(resp.Header()))
	for k := range resp.Header() {
		if strings.HasPrefix(strings.ToLower(k), "x-") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %s: %s\n", k, resp.Header().Get(k))
	}
}
