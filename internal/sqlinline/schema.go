package sqlinline

// QMigrateSchema creates every table the service needs. It is idempotent.
const QMigrateSchema = `--sql 5bdde60c-95d3-4d44-8d77-933607ba7a98
create table if not exists jobs (
    id uuid primary key,
    owner_id text,
    project_name text not null default '',
    input_spec jsonb not null,
    status text not null check (status in ('draft', 'pending', 'generating', 'completed', 'failed')),
    result_id uuid,
    result_document text,
    error_detail text,
    credential_hash text,
    credential_consumed boolean not null default false,
    is_archived boolean not null default false,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now(),
    completed_at timestamptz
);

create index if not exists idx_jobs_owner_active on jobs (owner_id) where not is_archived;
create index if not exists idx_jobs_status_created on jobs (status, created_at);
create unique index if not exists idx_jobs_result_id on jobs (result_id) where result_id is not null;

create table if not exists owners (
    id text primary key,
    tier text not null,
    max_jobs integer not null,
    updated_at timestamptz not null default now()
);

create table if not exists integration_tokens (
    id uuid primary key,
    provider text not null unique,
    token text not null,
    properties jsonb not null default '{}'::jsonb,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
`
