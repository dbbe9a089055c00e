package collector

// Diagnostic queries. Relation sizes go through relid/oid so mixed-case names resolve.
const (
	versionQuery = `SELECT version()`

	databaseSizeQuery = `
SELECT current_database(),
       pg_database_size(current_database()),
       pg_size_pretty(pg_database_size(current_database()))`

	replicationQuery = `
SELECT pg_is_in_recovery(),
       CASE WHEN pg_is_in_recovery()
            THEN EXTRACT(EPOCH FROM (now() - pg_last_xact_replay_timestamp()))::float8
       END`

	lockWaitsQuery = `SELECT count(*) FROM pg_locks WHERE NOT granted`

	cacheHitRatioQuery = `
SELECT (sum(heap_blks_hit) / nullif(sum(heap_blks_hit) + sum(heap_blks_read), 0))::float8
FROM pg_statio_user_tables`

	indexHitRatioQuery = `
SELECT (sum(idx_blks_hit) / nullif(sum(idx_blks_hit) + sum(idx_blks_read), 0))::float8
FROM pg_statio_user_indexes`

	connectionsQuery = `
SELECT count(*),
       count(*) FILTER (WHERE state = 'active'),
       count(*) FILTER (WHERE state = 'idle'),
       (SELECT setting::bigint FROM pg_settings WHERE name = 'max_connections')
FROM pg_stat_activity
WHERE datname = current_database()`

	vacuumStatsQuery = `
SELECT schemaname, relname, n_dead_tup, last_vacuum, last_autovacuum
FROM pg_stat_user_tables
WHERE n_dead_tup > 10000
ORDER BY n_dead_tup DESC
LIMIT 10`

	longRunningQueriesQuery = `
SELECT pid,
       EXTRACT(EPOCH FROM (now() - query_start))::float8,
       query,
       state
FROM pg_stat_activity
WHERE (now() - query_start) > interval '5 minutes'
  AND state != 'idle'
  AND query NOT ILIKE '%pg_stat_activity%'
ORDER BY query_start`

	unusedIndexesQuery = `
SELECT sui.schemaname,
       sui.relname,
       sui.indexrelname,
       pg_size_pretty(pg_relation_size(sui.indexrelid)),
       pg_relation_size(sui.indexrelid),
       sui.idx_scan
FROM pg_stat_user_indexes sui
JOIN pg_index pi ON sui.indexrelid = pi.indexrelid
WHERE sui.idx_scan = 0
  AND NOT pi.indisprimary
  AND NOT pi.indisunique
ORDER BY pg_relation_size(sui.indexrelid) DESC`

	statsSinceQuery = `
SELECT COALESCE(
         (SELECT stats_reset FROM pg_stat_database WHERE datname = current_database()),
         pg_postmaster_start_time())`

	bloatQuery = `
SELECT schemaname,
       relname,
       pg_size_pretty(pg_relation_size(relid)),
       n_dead_tup,
       n_live_tup,
       round(100.0 * n_dead_tup / nullif(n_live_tup + n_dead_tup, 0), 2)::float8
FROM pg_stat_user_tables
WHERE n_dead_tup > 1000
ORDER BY n_dead_tup DESC
LIMIT 10`

	missingPrimaryKeysQuery = `
SELECT n.nspname, c.relname
FROM pg_class c
JOIN pg_namespace n ON n.oid = c.relnamespace
WHERE c.relkind = 'r'
  AND n.nspname NOT IN ('pg_catalog', 'information_schema')
  AND n.nspname NOT LIKE 'pg_toast%'
  AND NOT EXISTS (
      SELECT 1 FROM pg_constraint con
      WHERE con.conrelid = c.oid AND con.contype = 'p'
  )
ORDER BY n.nspname, c.relname`

	tableSizesQuery = `
SELECT n.nspname,
       c.relname,
       greatest(c.reltuples, 0)::bigint,
       pg_size_pretty(pg_total_relation_size(c.oid)),
       pg_size_pretty(pg_relation_size(c.oid)),
       pg_size_pretty(pg_indexes_size(c.oid))
FROM pg_class c
JOIN pg_namespace n ON n.oid = c.relnamespace
WHERE c.relkind IN ('r', 'p')
  AND n.nspname NOT IN ('pg_catalog', 'information_schema')
  AND n.nspname NOT LIKE 'pg_toast%'
ORDER BY pg_total_relation_size(c.oid) DESC
LIMIT 20`

	slowQueriesQuery = `
SELECT query, calls, total_exec_time, mean_exec_time, rows
FROM pg_stat_statements
WHERE calls > 10
ORDER BY mean_exec_time DESC
LIMIT 10`

	duplicateIndexesQuery = `
SELECT tbl::text,
       (array_agg(idx::text))[1],
       (array_agg(idx::text))[2],
       pg_size_pretty(sum(pg_relation_size(idx))::bigint)
FROM (
    SELECT indexrelid::regclass AS idx,
           indrelid::regclass AS tbl,
           indkey AS cols
    FROM pg_index
    WHERE indisunique = false
) sub
GROUP BY tbl, cols
HAVING count(*) > 1`

	fkMissingIndexesQuery = `
SELECT c.conname,
       c.conrelid::regclass::text,
       a.attname,
       c.confrelid::regclass::text
FROM pg_constraint c
JOIN pg_attribute a ON a.attnum = ANY(c.conkey) AND a.attrelid = c.conrelid
WHERE c.contype = 'f'
  AND NOT EXISTS (
      SELECT 1 FROM pg_index i
      WHERE i.indrelid = c.conrelid
        AND a.attnum = ANY(i.indkey)
  )`

	xidAgeQuery = `
SELECT t.schemaname || '.' || t.relname,
       age(c.relfrozenxid)::bigint
FROM pg_stat_user_tables t
JOIN pg_class c ON c.oid = t.relid
WHERE age(c.relfrozenxid) > 100000000
ORDER BY age(c.relfrozenxid) DESC
LIMIT 10`

	securityChecksQuery = `
SELECT 'public_schema_permissions',
       CASE WHEN has_schema_privilege('public', 'public', 'CREATE')
            THEN 'WARNING: public role can create objects in public schema'
            ELSE 'OK'
       END
UNION ALL
SELECT 'superuser_count',
       'INFO: ' || count(*) || ' superuser roles'
FROM pg_roles WHERE rolsuper = true`

	tablespacesQuery = `
SELECT spcname,
       pg_size_pretty(pg_tablespace_size(oid)),
       pg_tablespace_location(oid)
FROM pg_tablespace
ORDER BY spcname`

	sharedBuffersQuery = `
SELECT pg_size_pretty((SELECT setting::bigint * 8192 FROM pg_settings WHERE name = 'shared_buffers'))`

	tablesNeedingVacuumQuery = `
SELECT schemaname,
       relname,
       n_dead_tup,
       n_live_tup,
       coalesce(round(100.0 * n_dead_tup / nullif(n_live_tup + n_dead_tup, 0), 2), 0)::float8,
       pg_size_pretty(pg_relation_size(relid))
FROM pg_stat_user_tables
WHERE n_dead_tup > 10000
ORDER BY n_dead_tup DESC`

	seqScanCandidatesQuery = `
SELECT schemaname,
       relname,
       seq_scan,
       seq_tup_read,
       coalesce(idx_scan, 0),
       n_live_tup,
       pg_size_pretty(pg_relation_size(relid)),
       pg_relation_size(relid)
FROM pg_stat_user_tables
WHERE seq_scan > 100
  AND n_live_tup > 10000
  AND (coalesce(idx_scan, 0) = 0 OR seq_scan > idx_scan * 10)
ORDER BY seq_tup_read DESC
LIMIT 20`

	largeTablesQuery = `
SELECT schemaname,
       relname,
       pg_size_pretty(pg_total_relation_size(relid)),
       pg_total_relation_size(relid),
       n_live_tup
FROM pg_stat_user_tables
WHERE pg_total_relation_size(relid) > 1073741824
ORDER BY pg_total_relation_size(relid) DESC`

	outdatedStatisticsQuery = `
SELECT schemaname, relname, n_mod_since_analyze, n_live_tup
FROM pg_stat_user_tables
WHERE n_mod_since_analyze > n_live_tup * 0.1
  AND n_live_tup > 1000
ORDER BY n_mod_since_analyze DESC
LIMIT 20`

	slowQueryCandidatesQuery = `
SELECT query, calls, total_exec_time, mean_exec_time, rows
FROM pg_stat_statements
WHERE query ILIKE '%WHERE%'
  AND query NOT ILIKE '%pg_%'
  AND mean_exec_time > 100
ORDER BY mean_exec_time DESC
LIMIT 10`

	tablesNeedingAnalyzeQuery = `
SELECT schemaname, relname, n_mod_since_analyze, n_live_tup
FROM pg_stat_user_tables
WHERE n_mod_since_analyze > GREATEST(n_live_tup * 0.1, 1000)
ORDER BY n_mod_since_analyze DESC`
)
