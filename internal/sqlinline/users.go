package sqlinline

const QSelectUserByID = `--sql 7865c2c3-dfb7-44a3-8885-0d9182e966e9
select id, email, role, credits, created_at, updated_at
from users
where id = $1::uuid
limit 1;
`

const QSelectUserByEmail = `--sql a26b7852-5600-413c-9b44-f648890b48c7
select id, email, role, credits, created_at, updated_at
from users
where lower(email) = lower($1::text)
limit 1;
`

const QGrantCredits = `--sql 06311ff4-6db1-4dc9-b33b-14cdb524e6b1
update users
set credits = credits + $2::int,
    updated_at = now()
where id = $1::uuid
  and role <> 'ADMIN'
returning id, email, role, credits;
`

const QPromoteAdmin = `--sql 7c10be61-3322-443d-916a-45b5374aba55
update users
set role = 'ADMIN',
    credits = $2::int,
    updated_at = now()
where id = $1::uuid
returning id, email, role, credits;
`
