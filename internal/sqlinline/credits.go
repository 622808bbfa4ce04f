package sqlinline

// QChargeCredit records the charge for a photo and decrements the balance in
// one statement. Nothing changes when the photo was already charged or the
// balance is empty; the caller tells the two apart by the returned flags.
// balance is the post-debit value and is 0 when nothing was debited.
const QChargeCredit = `--sql a1356e83-f724-43e3-81af-e809a818d1be
with
existing as (
    select 1 as found
    from credit_charges
    where photo_id = $2::uuid
),
debited as (
    update users
    set credits = credits - 1,
        updated_at = now()
    where id = $1::uuid
      and role <> 'ADMIN'
      and credits > 0
      and not exists (select 1 from existing)
    returning id, credits
),
recorded as (
    insert into credit_charges (id, user_id, photo_id, amount, created_at)
    select gen_random_uuid(), id, $2::uuid, 1, now()
    from debited
    on conflict (photo_id) do nothing
    returning photo_id
)
select
    exists (select 1 from existing) as already_charged,
    exists (select 1 from recorded) as charged,
    coalesce((select credits from debited), 0) as balance;
`

const QRefundCredit = `--sql 5356c6e4-0a82-4e04-bbc6-75aa385b1cfb
with removed as (
    delete from credit_charges
    where photo_id = $2::uuid
      and user_id = $1::uuid
    returning amount
)
update users
set credits = credits + (select amount from removed),
    updated_at = now()
where id = $1::uuid
  and exists (select 1 from removed);
`
