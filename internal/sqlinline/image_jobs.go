package sqlinline

const QInsertImageJob = `--sql 36dde567-e283-4605-bb09-c53c828e7b59
with job as (
  insert into image_jobs (id, name, languages, ratios, status, error_message, created_at, updated_at)
  values (gen_random_uuid(), $1::text, $2::text[], $3::text[], $4::text, '', now(), now())
  returning id, created_at
),
images as (
  insert into source_images (id, job_id, position, original_url, expansion_status, created_at, updated_at)
  select gen_random_uuid(), job.id, (u.ord - 1)::int, u.url, $5::text, job.created_at, job.created_at
  from job, unnest($6::text[]) with ordinality as u(url, ord)
  returning id, position
)
select
  job.id::text,
  job.created_at,
  coalesce((select array_agg(i.id::text order by i.position) from images i), '{}'::text[])
from job;
`

const QSelectImageJob = `--sql 244362f1-8f38-4a1f-a84e-f67829029d48
select id::text, name, languages, ratios, status, error_message, created_at, updated_at
from image_jobs
where id = $1::uuid;
`

const QDeleteImageJob = `--sql 4f2ee759-4b0e-4d27-85c9-9c4d7d4a4004
delete from image_jobs
where id = $1::uuid;
`

const QListSourceImages = `--sql 866cefbf-f851-455b-893c-cdc311351277
select id::text, job_id::text, position, original_url, expansion_status, expanded_url, expansion_error, created_at, updated_at
from source_images
where job_id = $1::uuid
order by position asc;
`

const QSelectSourceImage = `--sql b4c5bae2-34ad-46f3-bd8d-75c550afe879
select id::text, job_id::text, position, original_url, expansion_status, expanded_url, expansion_error, created_at, updated_at
from source_images
where id = $1::uuid;
`

const QUpdateExpandedURL = `--sql fba2c732-0a7e-4474-8b04-9a2a6d3d8a54
update source_images
set expanded_url = $2::text
where id = $1::uuid;
`

const QInsertImageTranslations = `--sql e3c17a9a-41da-4ad6-889f-05d890291b29
insert into image_translations (id, job_id, source_image_id, language, ratio, status, created_at, updated_at)
select gen_random_uuid(), r.job_id::uuid, r.source_image_id::uuid, r.language, r.ratio, r.status, now(), now()
from unnest($1::text[], $2::text[], $3::text[], $4::text[], $5::text[])
  as r(job_id, source_image_id, language, ratio, status)
on conflict (source_image_id, language, ratio) do nothing;
`

const QSelectImageTranslation = `--sql bb5dad8f-7f0b-4441-bb5e-cc83e62d7550
select id::text, job_id::text, source_image_id::text, language, ratio, status, translated_url, error_message,
  coalesce(active_version_id::text, ''), created_at, updated_at
from image_translations
where id = $1::uuid;
`

const QListImageTranslations = `--sql 75580aec-21ea-436c-aeb8-4ef5c691a576
select t.id::text, t.job_id::text, t.source_image_id::text, t.language, t.ratio, t.status, t.translated_url, t.error_message,
  coalesce(t.active_version_id::text, ''), t.created_at, t.updated_at
from image_translations t
join source_images s on s.id = t.source_image_id
where t.job_id = $1::uuid
order by s.position asc, t.ratio asc, t.language asc;
`

const QUpdateTranslatedURL = `--sql 6fed0b75-5178-4b0b-a777-4e3614b7d80f
update image_translations
set translated_url = $2::text,
    active_version_id = nullif($3::text, '')::uuid
where id = $1::uuid;
`

// QInsertActiveVersion deactivates the current versions of a translation and
// inserts the new one as active.
const QInsertActiveVersion = `--sql c8d4d11f-d3da-4777-932d-c835c85c83a2
with deactivated as (
  update image_translation_versions
  set active = false
  where image_translation_id = $1::uuid and active
)
insert into image_translation_versions (
  id, image_translation_id, url, task_id, quality_score, quality_analysis, extracted_text, generation_ms, active, created_at
) values (
  gen_random_uuid(), $1::uuid, $2::text, $3::text, $4::int, $5::jsonb, $6::text, $7::bigint, true, now()
)
returning id::text, created_at;
`

const QActivateVersion = `--sql 08e63d89-7eec-4ffe-81cc-d5fccdc03ea9
with target as (
  select id, image_translation_id, url, task_id, quality_score, quality_analysis, extracted_text, generation_ms, created_at
  from image_translation_versions
  where id = $2::uuid and image_translation_id = $1::uuid
),
flipped as (
  update image_translation_versions v
  set active = (v.id = (select id from target))
  where v.image_translation_id = $1::uuid
    and exists (select 1 from target)
),
surfaced as (
  update image_translations t
  set active_version_id = (select id from target),
      translated_url = (select url from target)
  where t.id = $1::uuid
    and exists (select 1 from target)
)
select id::text, image_translation_id::text, url, task_id, quality_score, quality_analysis, extracted_text, generation_ms, true, created_at
from target;
`

const QListVersions = `--sql 03b3eb04-6f8f-40a5-a0cd-b8624d72fa60
select id::text, image_translation_id::text, url, task_id, quality_score, quality_analysis, extracted_text, generation_ms, active, created_at
from image_translation_versions
where image_translation_id = $1::uuid
order by created_at asc;
`

const QListPendingImageTranslations = `--sql f3079fb3-3c79-4451-9352-0c8138fae1f5
select id::text
from image_translations
where status = 'pending'
   or (status = 'processing' and updated_at < $1::timestamptz)
order by updated_at asc
limit $2::int;
`

const QListPendingExpansions = `--sql 8fe34875-6e04-4f6c-8224-7832f97b16fd
select s.id::text
from source_images s
join image_jobs j on j.id = s.job_id
where j.status = 'expanding'
  and (s.expansion_status = 'pending'
       or (s.expansion_status = 'processing' and s.updated_at < $1::timestamptz))
order by s.updated_at asc
limit $2::int;
`
