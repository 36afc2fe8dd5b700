package store

import "fmt"

// Key layout, per spec §6: namespaced string keys under "bitcoin_coordinator/".
const namespace = "bitcoin_coordinator"

func keyTx(txid string) string {
	return fmt.Sprintf("%s/tx/%s", namespace, txid)
}

func keyTxInProgressList() string {
	return fmt.Sprintf("%s/tx/in_progress/list", namespace)
}

func keyTxRetry(txid string) string {
	return fmt.Sprintf("%s/retry/tx/%s", namespace, txid)
}

func keySpeedup(txid string) string {
	return fmt.Sprintf("%s/speedup/%s", namespace, txid)
}

func keySpeedupPendingList() string {
	return fmt.Sprintf("%s/speedup/pending/list", namespace)
}

func keySpeedupRetry(txid string) string {
	return fmt.Sprintf("%s/retry/speedup/%s", namespace, txid)
}

func keyNewsList() string {
	return fmt.Sprintf("%s/news/list", namespace)
}

func keyMonitorNewsList() string {
	return fmt.Sprintf("%s/news/monitor/list", namespace)
}

func keySequenceCounter() string {
	return fmt.Sprintf("%s/speedup/sequence", namespace)
}
