package sqlinline

// QSchema creates every table used by the Postgres store. It is idempotent.
const QSchema = `--sql 98a1e33b-bf14-442d-a85d-4c4e9ad17aa1
create extension if not exists pgcrypto;

create table if not exists image_jobs (
  id            uuid primary key default gen_random_uuid(),
  name          text not null default '',
  languages     text[] not null,
  ratios        text[] not null,
  status        text not null,
  error_message text not null default '',
  created_at    timestamptz not null default now(),
  updated_at    timestamptz not null default now()
);

create table if not exists source_images (
  id               uuid primary key default gen_random_uuid(),
  job_id           uuid not null references image_jobs(id) on delete cascade,
  position         int not null,
  original_url     text not null,
  expansion_status text not null,
  expanded_url     text not null default '',
  expansion_error  text not null default '',
  created_at       timestamptz not null default now(),
  updated_at       timestamptz not null default now()
);
create index if not exists source_images_job_idx on source_images(job_id, position);

create table if not exists image_translations (
  id                uuid primary key default gen_random_uuid(),
  job_id            uuid not null references image_jobs(id) on delete cascade,
  source_image_id   uuid not null references source_images(id) on delete cascade,
  language          text not null,
  ratio             text not null,
  status            text not null,
  translated_url    text not null default '',
  error_message     text not null default '',
  active_version_id uuid,
  created_at        timestamptz not null default now(),
  updated_at        timestamptz not null default now(),
  unique (source_image_id, language, ratio)
);
create index if not exists image_translations_job_idx on image_translations(job_id);
create index if not exists image_translations_status_idx on image_translations(status, updated_at);

create table if not exists image_translation_versions (
  id                   uuid primary key default gen_random_uuid(),
  image_translation_id uuid not null references image_translations(id) on delete cascade,
  url                  text not null,
  task_id              text not null default '',
  quality_score        int,
  quality_analysis     jsonb,
  extracted_text       text not null default '',
  generation_ms        bigint not null default 0,
  active               boolean not null default false,
  created_at           timestamptz not null default now()
);
create index if not exists image_translation_versions_parent_idx on image_translation_versions(image_translation_id, created_at);

create table if not exists translations (
  id                 uuid primary key default gen_random_uuid(),
  page_id            text not null,
  language           text not null,
  variant            text not null default '',
  status             text not null,
  source_content     text not null,
  translated_content text not null default '',
  quality_score      int,
  quality_analysis   jsonb,
  published_url      text not null default '',
  error_message      text not null default '',
  created_at         timestamptz not null default now(),
  updated_at         timestamptz not null default now()
);

create table if not exists ab_tests (
  id                     uuid primary key default gen_random_uuid(),
  page_id                text not null,
  language               text not null,
  control_translation_id uuid not null references translations(id) on delete cascade,
  variant_translation_id uuid not null references translations(id) on delete cascade,
  split_percentage       int not null check (split_percentage between 1 and 99),
  status                 text not null,
  winner                 text not null default '',
  error_message          text not null default '',
  created_at             timestamptz not null default now(),
  updated_at             timestamptz not null default now()
);

create table if not exists meta_campaigns (
  id                   uuid primary key default gen_random_uuid(),
  name                 text not null,
  objective            text not null default '',
  daily_budget_cents   bigint not null default 0,
  template_ad_set_id   text not null default '',
  platform_campaign_id text not null default '',
  platform_ad_set_id   text not null default '',
  status               text not null,
  error_message        text not null default '',
  created_at           timestamptz not null default now(),
  updated_at           timestamptz not null default now()
);

create table if not exists meta_ads (
  id             uuid primary key default gen_random_uuid(),
  campaign_id    uuid not null references meta_campaigns(id) on delete cascade,
  position       int not null default 0,
  name           text not null,
  image_url      text not null,
  primary_text   text not null default '',
  headline       text not null default '',
  link_url       text not null,
  image_hash     text not null default '',
  platform_ad_id text not null default '',
  status         text not null,
  error_message  text not null default '',
  created_at     timestamptz not null default now(),
  updated_at     timestamptz not null default now()
);
create index if not exists meta_ads_campaign_idx on meta_ads(campaign_id, position);
`
