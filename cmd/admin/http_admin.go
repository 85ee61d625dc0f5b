package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

func queueCmd(args []string) {
	fs := flag.NewFlagSet("queue", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	drop := fs.Bool("clear", false, "drop all pending interactions")
	_ = fs.Parse(args)

	method := http.MethodGet
	if *drop {
		method = http.MethodDelete
	}
	doRequest(method, *baseURL, "/v1/queue")
}

func presenceCmd(args []string) {
	fs := flag.NewFlagSet("presence", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	leave := fs.String("leave", "", "send this agent out of the office")
	ret := fs.String("return", "", "bring this agent back to their desk")
	_ = fs.Parse(args)

	switch {
	case *leave != "":
		doRequest(http.MethodPost, *baseURL, "/v1/presence/"+url.PathEscape(strings.TrimSpace(*leave))+"/leave")
	case *ret != "":
		doRequest(http.MethodPost, *baseURL, "/v1/presence/"+url.PathEscape(strings.TrimSpace(*ret))+"/return")
	default:
		doRequest(http.MethodGet, *baseURL, "/v1/presence")
	}
}

func doRequest(method, baseURL, path string) {
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/") + path
	req, _ := http.NewRequest(method, u, nil)
	cl := &http.Client{Timeout: 10 * time.Second}
	resp, err := cl.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(string(b))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}
