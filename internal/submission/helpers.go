package submission

import (
	"time"

	"ezchain/internal/idempotency"
	"ezchain/internal/txengine"
	"ezchain/internal/walletstore"
)

func idempotencyKey(senderAddress, clientTxID string) string {
	return idempotency.Key(senderAddress, clientTxID)
}

func idempotencyRecord(res txengine.Result, now time.Time) idempotency.Record {
	return idempotency.Record{
		TxHash:     res.TxHash,
		SubmitHash: res.SubmitHash,
		Amount:     res.Amount,
		Recipient:  res.Recipient,
		RecordedAt: now.Unix(),
	}
}

func historyRecord(res txengine.Result, now time.Time) walletstore.HistoryRecord {
	return walletstore.HistoryRecord{
		TxHash:     res.TxHash,
		SubmitHash: res.SubmitHash,
		Amount:     res.Amount,
		Recipient:  res.Recipient,
		RecordedAt: now.UTC().Format(time.RFC3339),
	}
}

const uiHTML = `<!DOCTYPE html>
<html>
<head><title>ezchain submission panel</title></head>
<body>
<h1>ezchain local submission service</h1>
<p>See <code>GET /health</code>, <code>GET /metrics</code>, and the wallet/tx routes.</p>
</body>
</html>
`
