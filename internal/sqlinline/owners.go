package sqlinline

const QSelectOwner = `--sql bc6959c7-00c0-480d-ada8-039a17f6542b
select id, tier, max_jobs, updated_at
from owners
where id = $1::text;
`

const QUpsertOwner = `--sql 4e51907a-5c0a-4bb2-8993-6a6c003ef0ac
insert into owners (id, tier, max_jobs, updated_at)
values ($1::text, $2::text, $3::int, now())
on conflict (id) do update set
    tier = excluded.tier,
    max_jobs = excluded.max_jobs,
    updated_at = now();
`
