package domain

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Estimated-wait weights per queued order, in minutes.
const (
	ConfirmedWaitWeight = 5
	PreparingWaitWeight = 2
)

// ItemSummary is a line of the queue display
type ItemSummary struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// QueueEntry is one ranked order in the live queue
type QueueEntry struct {
	ID                 string          `json:"id"`
	OrderNumber        string          `json:"orderNumber"`
	Position           int             `json:"position"`
	CustomerName       string          `json:"customerName"`
	Status             Status          `json:"status"`
	Items              []ItemSummary   `json:"items"`
	ItemCount          int             `json:"itemCount"`
	TotalAmount        decimal.Decimal `json:"totalAmount"`
	OrderTime          time.Time       `json:"orderTime"`
	EstimatedReadyTime *time.Time      `json:"estimatedReadyTime,omitempty"`
	WaitMinutes        int             `json:"waitMinutes"`
}

type QueueStats struct {
	Total                int `json:"total"`
	Confirmed            int `json:"confirmed"`
	Preparing            int `json:"preparing"`
	Ready                int `json:"ready"`
	AverageWaitMinutes   int `json:"averageWaitMinutes"`
	EstimatedWaitMinutes int `json:"estimatedWaitMinutes"`
}

type QueueSnapshot struct {
	Queue       []QueueEntry `json:"queue"`
	Stats       QueueStats   `json:"stats"`
	GeneratedAt time.Time    `json:"generatedAt"`
}

// QueuePosition answers where one order stands.
type QueuePosition struct {
	OrderID              string     `json:"orderId"`
	OrderNumber          string     `json:"orderNumber"`
	Status               Status     `json:"status"`
	InQueue              bool       `json:"inQueue"`
	Position             int        `json:"position,omitempty"`
	OrdersAhead          int        `json:"ordersAhead"`
	EstimatedReadyTime   *time.Time `json:"estimatedReadyTime,omitempty"`
	EstimatedWaitMinutes int        `json:"estimatedWaitMinutes"`
}

// Ahead reports whether a is served strictly before b. Orders outside the queue are never ahead.
func Ahead(a, b *Order) bool {
	pa, pb := a.Status.QueuePriority(), b.Status.QueuePriority()
	if pa < 0 || pb < 0 {
		return false
	}
	if pa != pb {
		return pa < pb
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

// RankQueue returns the queued orders in serving order. The input is not modified.
func RankQueue(orders []*Order) []*Order {
	ranked := make([]*Order, 0, len(orders))
	for _, o := range orders {
		if o.Status.IsActive() {
			ranked = append(ranked, o)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if Ahead(ranked[i], ranked[j]) {
			return true
		}
		if Ahead(ranked[j], ranked[i]) {
			return false
		}
		return ranked[i].ID < ranked[j].ID
	})
	return ranked
}

func minutesBetween(from, to time.Time) int {
	d := to.Sub(from)
	if d <= 0 {
		return 0
	}
	return int(d / time.Minute)
}

// BuildSnapshot ranks orders and derives per-entry waits and the aggregate stats.
func BuildSnapshot(orders []*Order, now time.Time) QueueSnapshot {
	ranked := RankQueue(orders)
	snap := QueueSnapshot{Queue: make([]QueueEntry, 0, len(ranked)), GeneratedAt: now}

	var totalWait time.Duration
	for i, o := range ranked {
		entry := QueueEntry{
			ID:                 o.ID,
			OrderNumber:        o.Number,
			Position:           i + 1,
			CustomerName:       o.CustomerName,
			Status:             o.Status,
			Items:              make([]ItemSummary, 0, len(o.Items)),
			TotalAmount:        o.TotalAmount,
			OrderTime:          o.CreatedAt,
			EstimatedReadyTime: o.EstimatedReadyTime,
			WaitMinutes:        minutesBetween(o.CreatedAt, now),
		}
		for _, it := range o.Items {
			entry.Items = append(entry.Items, ItemSummary{Name: it.Name, Quantity: it.Quantity})
			entry.ItemCount += it.Quantity
		}
		if d := now.Sub(o.CreatedAt); d > 0 {
			totalWait += d
		}

		switch o.Status {
		case StatusConfirmed:
			snap.Stats.Confirmed++
		case StatusPreparing:
			snap.Stats.Preparing++
		case StatusReady:
			snap.Stats.Ready++
		}
		snap.Queue = append(snap.Queue, entry)
	}

	snap.Stats.Total = len(ranked)
	if len(ranked) > 0 {
		// mean of the exact waits, floored to whole minutes
		snap.Stats.AverageWaitMinutes = int(totalWait / time.Duration(len(ranked)) / time.Minute)
	}
	snap.Stats.EstimatedWaitMinutes = ConfirmedWaitWeight*snap.Stats.Confirmed + PreparingWaitWeight*snap.Stats.Preparing
	return snap
}

// PositionOf builds the position answer for o given how many queued orders are ahead of it.
func PositionOf(o *Order, ahead int, now time.Time) QueuePosition {
	pos := QueuePosition{OrderID: o.ID, OrderNumber: o.Number, Status: o.Status}
	if !o.Status.IsActive() {
		return pos
	}
	pos.InQueue = true
	pos.OrdersAhead = ahead
	pos.Position = ahead + 1
	pos.EstimatedReadyTime = o.EstimatedReadyTime
	if o.EstimatedReadyTime != nil && o.Status != StatusReady {
		d := o.EstimatedReadyTime.Sub(now)
		if d > 0 {
			pos.EstimatedWaitMinutes = int(math.Ceil(d.Minutes()))
		}
	}
	return pos
}
