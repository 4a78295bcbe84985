package engine

import (
	"p2p-ad-bot/internal/interfaces"
	"p2p-ad-bot/internal/metrics"
)

func NewReconciler(m *metrics.Metrics) interfaces.Reconciler {
	return newReconciler(m)
}

func NewFulfiller(m *metrics.Metrics) interfaces.Fulfiller {
	return newFulfiller(m)
}
