package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/joho/godotenv"

	"github.com/mohammed-shakir/hugenum/internal/config"
	"github.com/mohammed-shakir/hugenum/internal/sim"
	"github.com/mohammed-shakir/hugenum/internal/tuneevents"
	"github.com/mohammed-shakir/hugenum/internal/tuner"
	"github.com/mohammed-shakir/hugenum/internal/valuestore"
	"github.com/mohammed-shakir/hugenum/pkg/decimal"
)

func getenv(key, def string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return def
}

func testStore(ctx context.Context, cfg config.StoreCfg) error {
	fmt.Println("Value store test")
	st, err := valuestore.New(ctx, valuestore.Config{Addr: cfg.RedisAddr, Prefix: cfg.Prefix + "smoke:"}, nil)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	want := decimal.MustParse("(e^5)320")
	if err := st.Save(ctx, "roundtrip", want); err != nil {
		return err
	}
	got, ok, err := st.Load(ctx, "roundtrip")
	if err != nil {
		return err
	}
	if !ok || !got.Eq(want) {
		return fmt.Errorf("round trip: got %s want %s", got, want)
	}
	fmt.Println("stored and loaded:", got)
	return st.Delete(ctx, "roundtrip")
}

func testEvents(cfg config.EventsCfg) error {
	fmt.Println("Tuning events test")
	brokers := cfg.BrokerList()

	// subscribe before producing so the test event is not missed
	consumer, err := sarama.NewConsumer(brokers, tuneevents.ProducerConfig())
	if err != nil {
		return fmt.Errorf("consumer create: %w", err)
	}
	defer func() { _ = consumer.Close() }()
	pc, err := consumer.ConsumePartition(cfg.Topic, 0, sarama.OffsetNewest)
	if err != nil {
		return fmt.Errorf("consume partition: %w", err)
	}
	defer func() { _ = pc.Close() }()

	pub, err := tuneevents.New(tuneevents.Config{Brokers: brokers, Topic: cfg.Topic, RunID: "smoke"}, nil, nil)
	if err != nil {
		return err
	}
	pub.Publish(tuner.Remediation{
		ID:     "smoke-check",
		Action: tuner.ActionResetCounters,
		Reason: tuner.ReasonSlowOps,
		At:     time.Now(),
	})
	if err := pub.Close(); err != nil {
		return err
	}

	timeout := time.After(5 * time.Second)
	for {
		select {
		case m := <-pc.Messages():
			var ev tuneevents.Event
			if err := json.Unmarshal(m.Value, &ev); err == nil && ev.ID == "smoke-check" {
				fmt.Println("consumed:", string(m.Value))
				return nil
			}
		case <-timeout:
			return errors.New("smoke event not consumed (timeout)")
		}
	}
}

func getJSON(client *http.Client, u string, v any) error {
	resp, err := client.Get(u)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: status %d: %s", u, resp.StatusCode, b)
	}
	if v == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// testServer reads the live snapshot and then requests every value n times,
// reporting latency percentiles.
func testServer(baseURL string, n int) error {
	fmt.Println("Telemetry server test")
	base := strings.TrimRight(baseURL, "/")
	if u, err := url.Parse(base); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("bad server URL %q", baseURL)
	}
	client := &http.Client{Timeout: 5 * time.Second}

	if err := getJSON(client, base+"/healthz", nil); err != nil {
		return err
	}
	var snap sim.Snapshot
	if err := getJSON(client, base+"/stats", &snap); err != nil {
		return err
	}
	if len(snap.Values) == 0 {
		return errors.New("snapshot has no values")
	}
	fmt.Printf("run %s at tick %d with %d values\n", snap.RunID, snap.Tick, len(snap.Values))

	var lat []time.Duration
	for range n {
		for name := range snap.Values {
			start := time.Now()
			if err := getJSON(client, base+"/values/"+url.PathEscape(name), nil); err != nil {
				return err
			}
			lat = append(lat, time.Since(start))
		}
	}
	slices.Sort(lat)
	fmt.Printf("requests=%d p50=%s p95=%s max=%s\n",
		len(lat), lat[len(lat)/2], lat[len(lat)*95/100], lat[len(lat)-1])
	return nil
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Println(".env error:", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("config error:", err)
		os.Exit(1)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if cfg.Store.RedisAddr != "" {
		if err := testStore(ctx, cfg.Store); err != nil {
			fmt.Println("Value store error:", err)
			os.Exit(1)
		}
	}
	if cfg.Events.Enabled {
		if err := testEvents(cfg.Events); err != nil {
			fmt.Println("Tuning events error:", err)
			os.Exit(1)
		}
	}
	if err := testServer(getenv("SERVER_URL", "http://localhost:8090"), 20); err != nil {
		fmt.Println("Server error:", err)
		os.Exit(1)
	}
	fmt.Println("All tests completed")
}
