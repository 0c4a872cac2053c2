package sqlinline

const QEnqueueMessage = `--sql 0f77cde8-688e-434c-838f-bcf37b60a6fa
insert into queue_messages (id, job_id, job_type)
values ($1, $2, $3);
`

// QClaimMessage picks the oldest deliverable message, locks it for the
// visibility window, and bumps its attempt count in one round trip.
const QClaimMessage = `--sql ca2c6212-e15e-4cdc-94fb-de47b4010f5b
with next_message as (
    select id
    from queue_messages
    where available_at <= now()
      and (locked_until is null or locked_until <= now())
    order by enqueued_at asc
    for update skip locked
    limit 1
),
claimed as (
    update queue_messages
    set attempt_count = attempt_count + 1,
        locked_until = now() + make_interval(secs => $1)
    where id in (select id from next_message)
    returning id, job_id, job_type, attempt_count
)
select * from claimed;
`

const QDeleteMessage = `--sql 9cf9da84-741e-46e0-9ffc-2ede678ad1cb
delete from queue_messages where id = $1;
`

const QReleaseMessage = `--sql 5236f999-2429-4e91-81ae-e7f53bed5f8b
update queue_messages
set locked_until = null,
    available_at = now() + make_interval(secs => $2)
where id = $1;
`

// QReconcilePending re-enqueues pending jobs older than the threshold that
// lost their message (crash between job creation and enqueue).
const QReconcilePending = `--sql c8c73119-b62d-4b82-b542-2953a2d836d6
insert into queue_messages (id, job_id, job_type)
select gen_random_uuid(), j.id, j.type
from jobs j
where j.status = 'pending'
  and j.created_at < now() - make_interval(secs => $1)
  and not exists (
      select 1 from queue_messages m where m.job_id = j.id
  )
returning job_id;
`
