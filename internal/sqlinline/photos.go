package sqlinline

const photoColumns = `id, owner_id, original_location, enhanced_location, status, last_error, attempts, created_at, updated_at`

const QSelectPhotoByID = `--sql 3b7b26a6-0be2-44c0-a30d-49ad5ba7ef5e
select ` + photoColumns + `
from photos
where id = $1::uuid
limit 1;
`

// QBeginPhotoProcessing is the sole concurrency guard for a photo: the row
// only moves when its current status is eligible.
const QBeginPhotoProcessing = `--sql 8fb8b75e-fbcc-4859-a1b9-92a7b8b47813
update photos
set status = 'PROCESSING',
    attempts = attempts + 1,
    updated_at = now()
where id = $1::uuid
  and status in ('PENDING', 'FAILED')
returning ` + photoColumns + `;
`

const QCompletePhoto = `--sql 6e5d2357-a709-4ab6-a2b9-81057b6b23f6
update photos
set status = 'COMPLETED',
    enhanced_location = $2::text,
    last_error = null,
    updated_at = now()
where id = $1::uuid
  and status = 'PROCESSING';
`

const QFailPhoto = `--sql 94f242c4-bb3e-42fc-9be8-b1f4810c6b6c
update photos
set status = 'FAILED',
    enhanced_location = null,
    last_error = $2::text,
    updated_at = now()
where id = $1::uuid
  and status = 'PROCESSING';
`

const QSelectRetryablePhotos = `--sql 981eedd7-991c-436f-9bb7-b233698c206b
select ` + photoColumns + `
from photos
where status = 'FAILED'
  and attempts < $1::int
  and coalesce(last_error, '') <> 'insufficient credits'
order by updated_at asc
limit $2::int;
`

const QFailStalePhotos = `--sql f77e43d7-4d38-443c-9b41-a75d1a9287d2
update photos
set status = 'FAILED',
    enhanced_location = null,
    last_error = $2::text,
    updated_at = now()
where status = 'PROCESSING'
  and updated_at < now() - make_interval(mins => $1::int);
`
