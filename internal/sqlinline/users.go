package sqlinline

const QSelectUserPlan = `--sql 7b0d92fb-35ad-485b-918d-5433d044a583
select plan, plan_expires_at
from app_users
where id = $1::uuid
limit 1;
`

const QDowngradeExpiredPlan = `--sql dfb723a7-da5b-43d1-aae1-096955ff96da
update app_users
set plan = 'free',
    plan_expires_at = null,
    updated_at = now()
where id = $1::uuid
  and plan = 'pro';
`

const QSetUserPlan = `--sql e20cf012-3398-40bc-a87a-15f379edd029
update app_users
set plan = $2::text,
    plan_expires_at = $3::timestamptz,
    updated_at = now()
where id = $1::uuid
returning id, plan, plan_expires_at;
`
