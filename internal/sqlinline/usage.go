package sqlinline

// QUpsertUsageCount is the atomic conditional increment of a day-scoped
// counter. The insert-or-increment happens in one statement so concurrent
// consumers serialize on the row itself; when the counter already sits at
// the limit the update predicate fails and no row comes back. A negative
// limit disables the cap.
const QUpsertUsageCount = `--sql a79690fa-3cd6-424d-a3fb-1958d9302d5a
insert into usage_logs (identity, is_user, usage_date, count, last_used_at)
values ($1::text, $2::boolean, $3::date, 1, now())
on conflict (identity, usage_date) do update set
    count = usage_logs.count + 1,
    last_used_at = now()
where usage_logs.count < $4::int or $4::int < 0
returning count;
`

const QSelectUsageCount = `--sql 7c115957-a669-40fd-85fb-ae825adffe21
select count
from usage_logs
where identity = $1::text
  and usage_date = $2::date
limit 1;
`

const QInsertUsageEvent = `--sql c87da804-ed77-41df-9440-29f4ec79fb03
insert into usage_events(id, identity, request_id, event_type, success, latency_ms, created_at)
values (gen_random_uuid(), $1::text, $2::uuid, $3::text, $4::boolean, $5::int, now());
`
