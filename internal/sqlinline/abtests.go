package sqlinline

const QInsertABTest = `--sql 90989f24-7624-43bd-89ad-e5f28ba54530
insert into ab_tests (id, page_id, language, control_translation_id, variant_translation_id, split_percentage, status, created_at, updated_at)
values (gen_random_uuid(), $1::text, $2::text, $3::uuid, $4::uuid, $5::int, $6::text, now(), now())
returning id::text, created_at, updated_at;
`

const QSelectABTest = `--sql 8d00ac68-b057-4af7-ada2-58e6c08f1a07
select id::text, page_id, language, control_translation_id::text, variant_translation_id::text,
  split_percentage, status, winner, error_message, created_at, updated_at
from ab_tests
where id = $1::uuid;
`

const QUpdateABTestWinner = `--sql b56b0d19-0a94-4758-979e-cd89defb07d1
update ab_tests
set winner = $2::text
where id = $1::uuid;
`

// QDeleteABTest removes the test and its variant translation. The control is
// left in place.
const QDeleteABTest = `--sql 10240137-c7c0-4d46-b0ca-d65588a5d209
with test as (
  delete from ab_tests
  where id = $1::uuid
  returning variant_translation_id
),
variant as (
  delete from translations
  where id in (select variant_translation_id from test)
)
select count(*) from test;
`
