package sqlinline

// QSelectProviderKey returns the stored API key for a provider, ignoring
// blank rows left by a cleared key.
const QSelectProviderKey = `--sql 4f0b8f0e-2c51-4b8e-9d0f-62a4c1f7e3d2
select token
from integration_tokens
where provider = $1::text
  and btrim(token) <> ''
limit 1;
`

const QUpsertProviderKey = `--sql 0d7c7a3e-58f4-4a57-bb0c-1e2f9f6a4c81
insert into integration_tokens (id, provider, token, properties, created_at, updated_at)
values (gen_random_uuid(), $1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb), now(), now())
on conflict (provider) do update set
    token = excluded.token,
    properties = integration_tokens.properties || excluded.properties,
    updated_at = now();
`

const QDeleteProviderKey = `--sql 93b1e2a4-7d6c-4f0e-8a35-5c2d9e7b1f60
delete from integration_tokens
where provider = $1::text;
`
