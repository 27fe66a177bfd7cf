package sqlinline

const QSelectIntegrationToken = `--sql b22fc8af-eb89-477e-998a-b8d78d8a16ac
select token
from integration_tokens
where provider = $1::text
limit 1;
`

const QUpsertIntegrationToken = `--sql 3e198b22-9d3e-4831-a03d-bc361df9e3d4
insert into integration_tokens (id, provider, token, properties, created_at, updated_at)
values (gen_random_uuid(), $1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb), now(), now())
on conflict (provider) do update set
    token = excluded.token,
    properties = excluded.properties,
    updated_at = now();
`
