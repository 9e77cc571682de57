package pgqueue

const (
	insertUniqueSQL = `
INSERT INTO jobq_unique (namespace, queue, content_hash)
VALUES ($1, $2, $3)
ON CONFLICT DO NOTHING`

	deleteUniqueSQL = `
DELETE FROM jobq_unique
WHERE namespace = $1 AND queue = $2 AND content_hash = $3`

	insertMessageSQL = `
INSERT INTO jobq_messages (namespace, queue, payload, ready_at, promoted)
VALUES ($1, $2, $3, $4, $5)`

	// Rows locked by a concurrent pop are skipped and promoted by the next one.
	promoteSQL = `
WITH due AS (
    SELECT seq FROM jobq_messages
    WHERE namespace = $1 AND queue = $2 AND NOT promoted AND ready_at <= $3
    FOR UPDATE SKIP LOCKED
)
UPDATE jobq_messages m SET promoted = TRUE
FROM due WHERE m.seq = due.seq`

	popSQL = `
DELETE FROM jobq_messages
WHERE seq = (
    SELECT seq FROM jobq_messages
    WHERE namespace = $1 AND queue = $2 AND promoted
    ORDER BY ready_at, seq
    LIMIT 1
    FOR UPDATE SKIP LOCKED
)
RETURNING payload`

	addCountersSQL = `
INSERT INTO jobq_counters (namespace, queue, completed, failed, total)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (namespace, queue) DO UPDATE SET
    completed = jobq_counters.completed + EXCLUDED.completed,
    failed = jobq_counters.failed + EXCLUDED.failed,
    total = jobq_counters.total + EXCLUDED.total`

	clearMessagesSQL = `DELETE FROM jobq_messages WHERE namespace = $1 AND queue = $2`
	clearUniqueSQL   = `DELETE FROM jobq_unique WHERE namespace = $1 AND queue = $2`
	resetCountersSQL = `DELETE FROM jobq_counters WHERE namespace = $1 AND queue = $2`

	statsSQL = `
SELECT
    (SELECT count(*) FROM jobq_messages WHERE namespace = $1 AND queue = $2 AND promoted),
    (SELECT count(*) FROM jobq_messages WHERE namespace = $1 AND queue = $2 AND NOT promoted),
    COALESCE(c.completed, 0), COALESCE(c.failed, 0), COALESCE(c.total, 0)
FROM (SELECT 1) AS one
LEFT JOIN jobq_counters c ON c.namespace = $1 AND c.queue = $2`

	queuesSQL = `
SELECT queue FROM jobq_messages WHERE namespace = $1
UNION
SELECT queue FROM jobq_unique WHERE namespace = $1
UNION
SELECT queue FROM jobq_counters
WHERE namespace = $1 AND (completed > 0 OR failed > 0 OR total > 0)
ORDER BY 1`
)
