package sqlitestore

// SQLite accepts the audit marker as a plain comment, so queries are passed through unchanged.

const qSchema = `--sql a03b26fa-d75b-46ed-b61a-ae83af56f10f
create table if not exists jobs (
    id text primary key,
    owner_id text,
    project_name text not null default '',
    input_spec text not null,
    status text not null,
    result_id text,
    result_document text,
    error_detail text,
    credential_hash text,
    credential_consumed integer not null default 0,
    is_archived integer not null default 0,
    created_at integer not null,
    updated_at integer not null,
    completed_at integer
);

create index if not exists idx_jobs_owner on jobs (owner_id, is_archived);
create index if not exists idx_jobs_status on jobs (status, created_at);
create index if not exists idx_jobs_result on jobs (result_id);

create table if not exists owners (
    id text primary key,
    tier text not null,
    max_jobs integer not null,
    updated_at integer not null
);
`

const jobColumns = `id, coalesce(owner_id, ''), project_name, input_spec, status,
    coalesce(result_id, ''), coalesce(result_document, ''), coalesce(error_detail, ''),
    coalesce(credential_hash, ''), credential_consumed, is_archived, created_at, updated_at, completed_at`

const qCountActiveJobsByOwner = `--sql 4412de97-1ac0-4cae-880b-16ff9bdeb254
select count(*) from jobs where owner_id = ? and is_archived = 0;
`

const qInsertJob = `--sql 1239432a-3668-433e-8fe2-99a99dcf84f9
insert into jobs (id, owner_id, project_name, input_spec, status, created_at, updated_at)
values (?, nullif(?, ''), ?, ?, ?, ?, ?);
`

const qSelectJobByID = "--sql e8cf2115-0441-4ec2-bbc7-a7b081af6e01\nselect " + jobColumns + `
from jobs
where id = ?;
`

const qSelectJobByResultID = "--sql 3a9e6b7c-58d2-4f1a-9c0e-b4d7a2e61f85\nselect " + jobColumns + `
from jobs
where result_id = ?
  and is_archived = 0;
`

const qListJobsByOwner = "--sql e7bc3d18-7694-49c0-b469-4189adaa4216\nselect " + jobColumns + `
from jobs
where owner_id = ? and is_archived = 0
order by created_at desc;
`

const qListJobsByStatus = "--sql a2ccfccb-2b67-4d68-a60f-ec1201f8ca6b\nselect " + jobColumns + `
from jobs
where status = ? and is_archived = 0
order by created_at asc
limit ?;
`

const qTransitionJobStatus = `--sql 9042da7f-2726-4ddd-81bc-c2c608e4f2e5
update jobs set status = ?, updated_at = ? where id = ? and status = ?;
`

const qCompleteJob = `--sql bbe3dbdf-e437-4ec7-a707-af6f853123aa
update jobs
set status = 'completed',
    result_id = ?,
    result_document = ?,
    error_detail = null,
    credential_hash = ?,
    credential_consumed = 0,
    completed_at = ?,
    updated_at = ?
where id = ? and status = 'generating';
`

const qFailJob = `--sql 709ca2ac-902d-48d2-87b1-f793cd7234eb
update jobs
set status = 'failed',
    error_detail = ?,
    result_document = null,
    credential_hash = null,
    credential_consumed = 0,
    updated_at = ?
where id = ? and status = 'generating';
`

const qConsumeJobCredential = `--sql 3b7bf831-4a6d-4c6a-9fe3-0cb7ccfe2bfe
update jobs
set credential_consumed = 1, updated_at = ?
where id = ? and status = 'completed' and credential_consumed = 0;
`

const qRotateJobCredential = `--sql a82c21ae-7a7d-4856-9812-d80270958a4d
update jobs
set credential_hash = ?, credential_consumed = 0, updated_at = ?
where id = ? and status = 'completed';
`

const qResetJobForRegeneration = `--sql aefa2686-2a06-49cc-97c1-75424d90b19d
update jobs
set status = 'pending',
    result_id = null,
    result_document = null,
    error_detail = null,
    credential_hash = null,
    credential_consumed = 0,
    completed_at = null,
    updated_at = ?
where id = ? and status in ('completed', 'failed');
`

const qArchiveJob = `--sql 74c83ec3-2583-4662-8635-db20f2717255
update jobs set is_archived = 1, updated_at = ? where id = ?;
`

const qSelectJobStatus = `--sql de88e01f-7619-4faa-9d0d-f06e8f534866
select status from jobs where id = ?;
`

const qSelectOwner = `--sql 80c77f5a-47d7-4bc4-a7fa-73f0247d062e
select id, tier, max_jobs, updated_at from owners where id = ?;
`

const qUpsertOwner = `--sql 044e09bf-46fc-41ed-a7c3-7c91221c5c1e
insert into owners (id, tier, max_jobs, updated_at)
values (?, ?, ?, ?)
on conflict (id) do update set
    tier = excluded.tier,
    max_jobs = excluded.max_jobs,
    updated_at = excluded.updated_at;
`
