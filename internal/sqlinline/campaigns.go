package sqlinline

const QInsertCampaign = `--sql 8a7100bf-c945-4e9b-bfc4-47e72cb53535
with campaign as (
  insert into meta_campaigns (id, name, objective, daily_budget_cents, template_ad_set_id, status, created_at, updated_at)
  values (gen_random_uuid(), $1::text, $2::text, $3::bigint, $4::text, $5::text, now(), now())
  returning id, created_at
),
ads as (
  insert into meta_ads (id, campaign_id, position, name, image_url, primary_text, headline, link_url, status, created_at, updated_at)
  select gen_random_uuid(), campaign.id, (a.ord - 1)::int, a.name, a.image_url, a.primary_text, a.headline, a.link_url, $6::text,
    campaign.created_at, campaign.created_at
  from campaign, unnest($7::text[], $8::text[], $9::text[], $10::text[], $11::text[]) with ordinality
    as a(name, image_url, primary_text, headline, link_url, ord)
  returning id, position
)
select
  campaign.id::text,
  campaign.created_at,
  coalesce((select array_agg(ads.id::text order by ads.position) from ads), '{}'::text[])
from campaign;
`

const QSelectCampaign = `--sql c3e6face-adc6-4c29-b71a-e08d017ba18a
select id::text, name, objective, daily_budget_cents, template_ad_set_id, platform_campaign_id, platform_ad_set_id,
  status, error_message, created_at, updated_at
from meta_campaigns
where id = $1::uuid;
`

const QListAds = `--sql 7c0b027e-570e-4dac-a7fc-715e5ef8d82b
select id::text, campaign_id::text, name, image_url, primary_text, headline, link_url, image_hash, platform_ad_id,
  status, error_message, created_at, updated_at
from meta_ads
where campaign_id = $1::uuid
order by position asc;
`

const QSelectAd = `--sql d02933f3-bf26-4d9d-a2d0-8e70ec3d7733
select id::text, campaign_id::text, name, image_url, primary_text, headline, link_url, image_hash, platform_ad_id,
  status, error_message, created_at, updated_at
from meta_ads
where id = $1::uuid;
`

const QUpdateCampaignPlatformIDs = `--sql 87b5d965-ad1e-4f78-a1e6-8753f1746206
update meta_campaigns
set platform_campaign_id = $2::text,
    platform_ad_set_id = $3::text
where id = $1::uuid;
`

const QUpdateAdResult = `--sql e2d79788-81f3-4f78-bcd4-3b76d3483e59
update meta_ads
set image_hash = $2::text,
    platform_ad_id = $3::text
where id = $1::uuid;
`
