package sqlinline

// jobColumns is shared by every query returning a full job row.
const jobColumns = `id::text, coalesce(owner_id, ''), project_name, input_spec, status,
    coalesce(result_id::text, ''), coalesce(result_document, ''), coalesce(error_detail, ''),
    coalesce(credential_hash, ''), credential_consumed, is_archived, created_at, updated_at, completed_at`

const QLockOwnerJobs = `--sql 94e5ade3-6fc2-4539-8c8c-e0a363d38645
select pg_advisory_xact_lock(hashtext($1::text));
`

const QCountActiveJobsByOwner = `--sql 086d563f-d42e-46ea-a74f-255df34ee566
select count(*)
from jobs
where owner_id = $1::text
  and not is_archived;
`

const QInsertJob = `--sql 4f6d527d-26c3-4404-a003-8f43fa286cbe
insert into jobs (id, owner_id, project_name, input_spec, status, created_at, updated_at)
values ($1::uuid, nullif($2::text, ''), $3::text, $4::jsonb, $5::text, $6, $6);
`

const QSelectJobByID = `--sql 2c1ec3aa-43c3-4b3e-aad9-dcf6f7da65f9
select ` + jobColumns + `
from jobs
where id = $1::uuid;
`

const QSelectJobByResultID = `--sql 7d1f0c52-9a43-4e8b-b6f1-2c5e8a9d4b17
select ` + jobColumns + `
from jobs
where result_id = $1::uuid
  and not is_archived;
`

const QSelectJobByIDForUpdate = `--sql e24e66a1-48c5-4088-b2f4-0cada6e849a2
select ` + jobColumns + `
from jobs
where id = $1::uuid
for update;
`

const QListJobsByOwner = `--sql 496b0f60-ba15-4fc1-8b3f-8b5fc9f478b1
select ` + jobColumns + `
from jobs
where owner_id = $1::text
  and not is_archived
order by created_at desc;
`

const QListJobsByStatus = `--sql 6890dcc1-5906-438f-b1e5-c9fb0258bdbc
select ` + jobColumns + `
from jobs
where status = $1::text
  and not is_archived
order by created_at asc
limit nullif($2::int, 0);
`

const QTransitionJobStatus = `--sql 1170ee1e-a21c-43ed-adef-4b93196ae945
update jobs
set status = $3::text,
    updated_at = now()
where id = $1::uuid
  and status = $2::text;
`

const QCompleteJob = `--sql 95bb2e01-11d9-418d-8de6-4a1b1471e505
update jobs
set status = 'completed',
    result_id = $2::uuid,
    result_document = $3::text,
    error_detail = null,
    credential_hash = $4::text,
    credential_consumed = false,
    completed_at = $5,
    updated_at = now()
where id = $1::uuid
  and status = 'generating';
`

const QFailJob = `--sql 115e1f16-0bc5-413f-a17f-3e825a156725
update jobs
set status = 'failed',
    error_detail = $2::text,
    result_document = null,
    credential_hash = null,
    credential_consumed = false,
    updated_at = now()
where id = $1::uuid
  and status = 'generating';
`

const QConsumeJobCredential = `--sql 2c2875e9-e493-4eba-b34c-d2432d8bac95
update jobs
set credential_consumed = true,
    updated_at = now()
where id = $1::uuid
  and status = 'completed'
  and not credential_consumed;
`

const QRotateJobCredential = `--sql e40914fa-716c-42d6-b5a0-9d1503b5f932
update jobs
set credential_hash = $2::text,
    credential_consumed = false,
    updated_at = now()
where id = $1::uuid
  and status = 'completed';
`

const QResetJobForRegeneration = `--sql 80368b56-5981-4819-bd8f-d48ad59536cc
update jobs
set status = 'pending',
    result_id = null,
    result_document = null,
    error_detail = null,
    credential_hash = null,
    credential_consumed = false,
    completed_at = null,
    updated_at = now()
where id = $1::uuid
  and status in ('completed', 'failed');
`

const QArchiveJob = `--sql 3bcf45f9-d438-48ba-8844-972810b4cf75
update jobs
set is_archived = true,
    updated_at = now()
where id = $1::uuid;
`

const QSelectJobStatus = `--sql f39161bb-f93b-49bd-8311-226e70767e85
select status
from jobs
where id = $1::uuid;
`
