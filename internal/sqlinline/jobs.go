package sqlinline

const QInsertJob = `--sql a587b710-288b-4043-ba53-e11cac92404d
insert into jobs (id, project_id, type, status, payload)
values ($1, $2, $3, 'pending', $4);
`

// QTransitionJob moves a job forward only when its current status is in the
// allowed-from set; zero rows back means the transition was rejected (or the
// job does not exist, which QSelectJobStatus distinguishes).
const QTransitionJob = `--sql 2f876fa2-b8c8-4a19-a0eb-ff91f49c6017
update jobs
set status = $2,
    progress = case when $2 = 'processing' then progress else null end,
    result = coalesce($3, result),
    error_message = coalesce($4, error_message),
    started_at = coalesce(started_at, $5),
    completed_at = coalesce(completed_at, $6),
    updated_at = now()
where id = $1
  and status = any($7)
returning id;
`

const QSelectJobStatus = `--sql 4903768f-49a2-41d1-95e5-a3f25febafc0
select status from jobs where id = $1;
`

const QSelectJob = `--sql 0ed97203-be21-4c36-8e0a-b2801fec7dc4
select id, project_id, type, status, payload, progress, result, error_message,
       created_at, started_at, completed_at, updated_at
from jobs
where id = $1 and project_id = $2;
`

const QSelectJobByID = `--sql a0b81667-7e7b-44eb-a3f7-cc2417031f37
select id, project_id, type, status, payload, progress, result, error_message,
       created_at, started_at, completed_at, updated_at
from jobs
where id = $1;
`

// QSetJobProgress only writes while the job is processing and never moves
// the reported step index backwards, so a stale duplicate report is a no-op.
const QSetJobProgress = `--sql d0d60e89-4bc5-43ba-89fb-2a697356cc93
update jobs
set progress = $2,
    updated_at = now()
where id = $1
  and status = 'processing'
  and (progress is null or (progress->>'current')::int <= ($2::jsonb->>'current')::int);
`

const QInsertArtifact = `--sql b42da3ce-0636-4789-87fa-5a92f9508068
insert into job_artifacts (id, job_id, project_id, kind, payload)
values ($1, $2, $3, $4, $5);
`
