package sqlinline

const QInsertTranslation = `--sql 34b1e90d-fa5d-492e-88c7-737821667357
insert into translations (id, page_id, language, variant, status, source_content, translated_content, created_at, updated_at)
values (gen_random_uuid(), $1::text, $2::text, $3::text, $4::text, $5::text, $6::text, now(), now())
returning id::text, created_at, updated_at;
`

const QSelectTranslation = `--sql 046cd59b-0183-4173-9c0e-e81a889c557e
select id::text, page_id, language, variant, status, source_content, translated_content,
  quality_score, quality_analysis, published_url, error_message, created_at, updated_at
from translations
where id = $1::uuid;
`

const QUpdateTranslationContent = `--sql c6f02b7f-aed8-4b93-8d31-a6fe791377fe
update translations
set translated_content = $2::text
where id = $1::uuid;
`

const QUpdateTranslationQuality = `--sql 61d9d711-a805-4ae0-bcb3-15177236256b
update translations
set quality_score = $2::int,
    quality_analysis = $3::jsonb
where id = $1::uuid;
`

const QUpdateTranslationPublishedURL = `--sql d71468d1-66f3-4dfa-8eb7-fd60a19c7add
update translations
set published_url = $2::text
where id = $1::uuid;
`
