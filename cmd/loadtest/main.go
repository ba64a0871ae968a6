package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

// Result 记录单次请求的 HTTP 结果，便于聚合统计。
type Result struct {
	Status int
	Body   string
	Err    error
}

type envelope struct {
	Code  int             `json:"code"`
	Error string          `json:"error"`
	Msg   string          `json:"msg"`
	Data  json.RawMessage `json:"data"`
}

func main() {
	baseURL := flag.String("base", "http://localhost:8080", "server base url")
	productID := flag.Uint("product", 1, "product id")
	userID := flag.Uint("user", 1, "verified user that owns the test orders")
	stock := flag.Int("stock", 20, "stock to set before the run")
	adminToken := flag.String("admin-token", "dev-admin-token", "admin token for the set-quantity endpoint")

	// 超卖测试参数：大量订单并发抢少量库存，每单 1 件
	nOrders := flag.Int("orders", 200, "concurrent fulfill requests, one order each")
	concurrency := flag.Int("c", 50, "max concurrency")
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}

	if _, err := call(client, http.MethodPut, fmt.Sprintf("%s/api/inventory/%d", *baseURL, *productID),
		map[string]int{"quantity": *stock}, map[string]string{"X-Admin-Token": *adminToken}); err != nil {
		fail("set stock: %v", err)
	}
	fmt.Printf("stock of product %d set to %d\n", *productID, *stock)

	orderIDs := make([]uint, 0, *nOrders)
	for i := 0; i < *nOrders; i++ {
		env, err := createOrder(client, *baseURL, *userID)
		if err != nil {
			fail("create order %d: %v", i, err)
		}
		var o struct {
			ID uint `json:"id"`
		}
		if err := json.Unmarshal(env.Data, &o); err != nil {
			fail("decode order: %v", err)
		}
		orderIDs = append(orderIDs, o.ID)
	}
	fmt.Printf("created %d orders for user %d\n", len(orderIDs), *userID)

	fmt.Printf("start oversell test: product=%d orders=%d concurrency=%d\n", *productID, len(orderIDs), *concurrency)
	results := runFulfill(client, *baseURL, *productID, orderIDs, *concurrency)
	printSummary("oversell", results)

	env, err := call(client, http.MethodGet, fmt.Sprintf("%s/api/inventory/%d", *baseURL, *productID), nil, nil)
	if err != nil {
		fail("read stock: %v", err)
	}
	var q struct {
		Quantity int `json:"quantity"`
	}
	if err := json.Unmarshal(env.Data, &q); err != nil {
		fail("decode stock: %v", err)
	}

	succeeded := 0
	for _, r := range results {
		if r.Err == nil && r.Status == http.StatusOK {
			succeeded++
		}
	}
	fmt.Printf("final stock: %d, fulfilled: %d\n", q.Quantity, succeeded)

	expected := *stock - succeeded
	if q.Quantity < 0 || q.Quantity != expected || succeeded > *stock {
		fail("OVERSOLD: stock=%d fulfilled=%d initial=%d", q.Quantity, succeeded, *stock)
	}
	fmt.Println("ok: no oversell")
}

// createOrder 被限流（429）时退避重试。
func createOrder(client *http.Client, baseURL string, userID uint) (envelope, error) {
	var lastErr error
	for attempt := 0; attempt < 20; attempt++ {
		env, err := call(client, http.MethodPost, baseURL+"/api/orders", map[string]uint{"user_id": userID}, nil)
		if err == nil {
			return env, nil
		}
		if !strings.HasPrefix(err.Error(), "status=429") {
			return envelope{}, err
		}
		lastErr = err
		time.Sleep(100 * time.Millisecond)
	}
	return envelope{}, lastErr
}

func runFulfill(client *http.Client, baseURL string, productID uint, orderIDs []uint, concurrency int) []Result {
	type line struct {
		ProductID uint `json:"product_id"`
		Quantity  int  `json:"quantity"`
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	results := make([]Result, len(orderIDs))

	for i, id := range orderIDs {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, orderID uint) {
			defer wg.Done()
			defer func() { <-sem }()

			url := fmt.Sprintf("%s/api/orders/%d/items", baseURL, orderID)
			results[idx] = postOnce(client, url, []line{{ProductID: productID, Quantity: 1}})
		}(i, id)
	}

	wg.Wait()
	return results
}

func postOnce(client *http.Client, url string, body any) Result {
	b, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPost, url, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return Result{Err: err}
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return Result{Status: resp.StatusCode, Body: string(out)}
}

// printSummary 聚合输出不同状态码分布。
func printSummary(name string, results []Result) {
	count := map[int]int{}
	errCount := 0
	for _, r := range results {
		if r.Err != nil {
			errCount++
			continue
		}
		count[r.Status]++
	}
	fmt.Printf("[%s] http status summary:\n", name)
	for _, code := range []int{200, 400, 404, 409, 429, 500} {
		if count[code] > 0 {
			fmt.Printf("  %d -> %d\n", code, count[code])
		}
	}
	if errCount > 0 {
		fmt.Printf("  errors -> %d\n", errCount)
	}
}

// call 发送 JSON 请求并解析响应；非 2xx 视为错误。
func call(client *http.Client, method, url string, body any, headers map[string]string) (envelope, error) {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		return envelope{}, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return envelope{}, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return envelope{}, fmt.Errorf("status=%d body=%s", resp.StatusCode, string(b))
	}
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return envelope{}, err
	}
	return env, nil
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
