package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to PaymentStatus
		ok       bool
	}{
		{PaymentPending, PaymentPaid, true},
		{PaymentPending, PaymentRejected, true},
		{PaymentPending, PaymentConfirmed, false},
		{PaymentPaid, PaymentConfirmed, true},
		{PaymentPaid, PaymentRejected, true},
		{PaymentPaid, PaymentPaid, false},
		{PaymentConfirmed, PaymentRejected, false},
		{PaymentConfirmed, PaymentConfirmed, false},
		{PaymentRejected, PaymentPaid, false},
		{PaymentPaid, PaymentPending, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.ok, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTerminal(t *testing.T) {
	require.False(t, PaymentPending.Terminal())
	require.False(t, PaymentPaid.Terminal())
	require.True(t, PaymentConfirmed.Terminal())
	require.True(t, PaymentRejected.Terminal())
}

func TestGenerationModelRef(t *testing.T) {
	g := &Generation{}
	require.Equal(t, DemoModelRef, g.ModelRef())

	id := int64(42)
	g.ModelID = &id
	require.Equal(t, "42", g.ModelRef())
}

func TestParseID(t *testing.T) {
	id, err := ParseID(" 17 ")
	require.NoError(t, err)
	require.Equal(t, int64(17), id)

	_, err = ParseID("0")
	require.Error(t, err)
	_, err = ParseID("demo")
	require.Error(t, err)
}

func TestTrainedModelUsable(t *testing.T) {
	m := &TrainedModel{Status: ModelReady}
	require.False(t, m.Usable())
	m.ProviderTuneID = "123"
	require.True(t, m.Usable())
	m.Status = ModelProcessing
	require.False(t, m.Usable())
}
