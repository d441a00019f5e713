package performance

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/polyfolio/internal/models"
)

var testNow = time.Unix(1_700_000_000, 0)

type fakePrices struct {
	mu           sync.Mutex
	current      map[string]float64
	history      map[string][]models.PricePoint
	currentErr   map[string]error
	historyCalls map[string]int
	lastRange    [2]int64
}

func (f *fakePrices) FetchCurrentPrice(_ context.Context, asset string) (float64, error) {
	if err := f.currentErr[asset]; err != nil {
		return 0, err
	}
	return f.current[asset], nil
}

func (f *fakePrices) FetchPriceHistory(_ context.Context, asset string, startTs, endTs int64, _ int) ([]models.PricePoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.historyCalls == nil {
		f.historyCalls = make(map[string]int)
	}
	f.historyCalls[asset]++
	f.lastRange = [2]int64{startTs, endTs}
	return f.history[asset], nil
}

func newTestEnricher(src PriceSource) *Enricher {
	return NewEnricher(src, 1, 4).WithClock(func() time.Time { return testNow })
}

func TestNormalizeHours(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"0", 24},
		{"", 24},
		{"abc", 24},
		{"-5", 24},
		{"1", 1},
		{" 168 ", 168},
		{"12h", 12},
		{"6.5", 6},
		{"+3", 3},
		{"87600", MaxHours},
		{"87601", 24},
		{"9223372036854775807", 24},
		{"99999999999999999999", 24},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeHours(tt.in))
		})
	}
}

func TestNearestPoint(t *testing.T) {
	_, ok := NearestPoint(nil, 100)
	assert.False(t, ok)

	history := []models.PricePoint{{T: 90, P: 0.1}, {T: 104, P: 0.2}, {T: 97, P: 0.3}}
	p, ok := NearestPoint(history, 100)
	require.True(t, ok)
	assert.Equal(t, int64(97), p.T)
}

func TestNearestPoint_TieKeepsFirst(t *testing.T) {
	history := []models.PricePoint{{T: 110, P: 0.6}, {T: 90, P: 0.4}}
	for i := 0; i < 10; i++ {
		p, _ := NearestPoint(history, 100)
		assert.Equal(t, 0.6, p.P)
	}

	reversed := []models.PricePoint{history[1], history[0]}
	p, _ := NearestPoint(reversed, 100)
	assert.Equal(t, 0.4, p.P)
}

func TestSnapshot(t *testing.T) {
	target := testNow.Unix() - 24*3600
	src := &fakePrices{
		current: map[string]float64{"tok1": 0.6},
		history: map[string][]models.PricePoint{
			"tok1": {{T: target + 30, P: 0.4}, {T: target + 3600, P: 0.5}},
		},
	}

	snap, err := newTestEnricher(src).Snapshot(context.Background(), "tok1", 24)
	require.NoError(t, err)
	assert.Equal(t, [2]int64{target, testNow.Unix()}, src.lastRange)
	assert.Equal(t, 0.4, snap.PastPrice)
	assert.Equal(t, target+30, snap.PastTimestamp)
	assert.Equal(t, 0.6, snap.CurrentPrice)
	assert.InDelta(t, 0.2, snap.Change, 1e-12)
	assert.InDelta(t, 50.0, snap.ChangePercent, 1e-9)
	assert.NoError(t, snap.Validate())
}

func TestSnapshot_ScenarioC(t *testing.T) {
	src := &fakePrices{history: map[string][]models.PricePoint{"tok1": {{T: 1, P: 0.5}}}}
	_, err := newTestEnricher(src).Snapshot(context.Background(), "tok1", NormalizeHours("0"))
	require.NoError(t, err)
	assert.Equal(t, testNow.Unix()-24*3600, src.lastRange[0])
}

func TestSnapshot_HugeWindowFallsBack(t *testing.T) {
	src := &fakePrices{history: map[string][]models.PricePoint{"tok1": {{T: 1, P: 0.5}}}}
	_, err := newTestEnricher(src).Snapshot(context.Background(), "tok1", NormalizeHours("9223372036854775807"))
	require.NoError(t, err)
	assert.Equal(t, testNow.Unix()-24*3600, src.lastRange[0])
	assert.Less(t, src.lastRange[0], src.lastRange[1])

	_, err = newTestEnricher(src).Snapshot(context.Background(), "tok1", math.MaxInt)
	require.NoError(t, err)
	assert.Equal(t, testNow.Unix()-24*3600, src.lastRange[0])
}

func TestSnapshot_Failures(t *testing.T) {
	errDown := errors.New("timeout")
	src := &fakePrices{
		currentErr: map[string]error{"tok1": errDown},
		history:    map[string][]models.PricePoint{"tok1": {{T: 1, P: 0.5}}},
	}
	e := newTestEnricher(src)

	_, err := e.Snapshot(context.Background(), "tok1", 24)
	assert.ErrorIs(t, err, errDown)

	_, err = e.Snapshot(context.Background(), "tok2", 24)
	assert.ErrorIs(t, err, ErrNoHistory)
}

func TestSnapshot_ZeroPastPriceGuard(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("percent change is exactly 0 when past price is 0", prop.ForAll(
		func(current float64, size float64) bool {
			src := &fakePrices{
				current: map[string]float64{"tok1": current},
				history: map[string][]models.PricePoint{"tok1": {{T: testNow.Unix(), P: 0}}},
			}
			snap, err := newTestEnricher(src).Snapshot(context.Background(), "tok1", 24)
			if err != nil || snap.ChangePercent != 0 {
				return false
			}
			e := Apply(models.Holding{Asset: "tok1", Size: size}, &snap)
			return e.PricePctChange == 0 && e.ProjectedPnlChange == 0 &&
				!math.IsNaN(e.PnlChange) && !math.IsInf(e.PnlChange, 0)
		},
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1e6),
	))

	properties.TestingRun(t)
}

func TestApply(t *testing.T) {
	h := models.Holding{Asset: "tok1", Size: 100}
	snap := &models.PriceSnapshot{Asset: "tok1", PastPrice: 0.4, CurrentPrice: 0.5, Change: 0.1, ChangePercent: 25}

	e := Apply(h, snap)
	assert.True(t, e.Priced)
	assert.Equal(t, 10.0, e.PnlChange)
	assert.Equal(t, 25.0, e.PricePctChange)
	assert.Equal(t, 10.0, e.ProjectedPnlChange)
	assert.Equal(t, h, e.Holding)

	unpriced := Apply(h, nil)
	assert.False(t, unpriced.Priced)
	assert.Equal(t, models.PeriodMetrics{}, unpriced.PeriodMetrics)
}

func TestEnrich(t *testing.T) {
	src := &fakePrices{
		current:    map[string]float64{"tok1": 0.5, "tok2": 0.9},
		currentErr: map[string]error{"tok3": errors.New("503")},
		history: map[string][]models.PricePoint{
			"tok1": {{T: testNow.Unix() - 24*3600, P: 0.4}},
			"tok3": {{T: testNow.Unix() - 24*3600, P: 0.4}},
		},
	}
	holdings := []models.Holding{
		{Asset: "tok1", Size: 100, Wallet: "0xAAA"},
		{Asset: "tok2", Size: 10, Wallet: "0xAAA"},
		{Asset: "tok1", Size: 50, Wallet: "0xBBB"},
		{Asset: "tok3", Size: 1, Wallet: "0xBBB"},
	}

	enriched, errs := newTestEnricher(src).Enrich(context.Background(), holdings, 0)

	require.Len(t, enriched, 4)
	assert.Equal(t, 1, src.historyCalls["tok1"], "asset priced once")
	assert.Equal(t, 10.0, enriched[0].PnlChange)
	assert.Equal(t, 5.0, enriched[2].PnlChange)
	assert.False(t, enriched[1].Priced, "empty history leaves metrics at zero")
	assert.False(t, enriched[3].Priced)

	require.Len(t, errs, 2)
	failed := map[string]bool{errs[0].Asset: true, errs[1].Asset: true}
	assert.True(t, failed["tok2"])
	assert.True(t, failed["tok3"])
}

func TestEnrich_Empty(t *testing.T) {
	enriched, errs := newTestEnricher(&fakePrices{}).Enrich(context.Background(), nil, 24)
	assert.Empty(t, enriched)
	assert.Empty(t, errs)
}
