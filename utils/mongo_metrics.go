package utils

import (
	"sync/atomic"

	"go.mongodb.org/mongo-driver/event"
)

// MongoMetrics is a snapshot of the remote store connection pool.
type MongoMetrics struct {
	CheckedOut int64 `json:"checked_out"`
	Created    int64 `json:"created"`
	Closed     int64 `json:"closed"`
}

var (
	mongoCheckedOut atomic.Int64
	mongoCreated    atomic.Int64
	mongoClosed     atomic.Int64
)

// MongoPoolMonitor feeds the pool counters from driver events.
func MongoPoolMonitor() *event.PoolMonitor {
	return &event.PoolMonitor{
		Event: func(e *event.PoolEvent) {
			switch e.Type {
			case event.ConnectionCreated:
				mongoCreated.Add(1)
			case event.ConnectionClosed:
				mongoClosed.Add(1)
			case event.GetSucceeded:
				mongoCheckedOut.Add(1)
			case event.ConnectionReturned:
				mongoCheckedOut.Add(-1)
			}
		},
	}
}

func GetMongoMetrics() MongoMetrics {
	return MongoMetrics{
		CheckedOut: mongoCheckedOut.Load(),
		Created:    mongoCreated.Load(),
		Closed:     mongoClosed.Load(),
	}
}
